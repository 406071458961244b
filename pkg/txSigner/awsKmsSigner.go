package txSigner

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var secp256k1HalfN = new(big.Int).Rsh(crypto.S256().Params().N, 1)

// AWSKMSSigner implements ITransactionSigner with a secp256k1 key held in AWS KMS.
// The private key never leaves KMS; only digests are sent for signing.
type AWSKMSSigner struct {
	kmsClient kmsiface.KMSAPI
	keyID     string
	address   common.Address
}

// NewAWSKMSSigner creates a new AWSKMSSigner with the specified KMS key ID and AWS region.
//
// Parameters:
//   - keyID: The AWS KMS key ID or ARN for signing operations
//   - region: The AWS region where the KMS key is located
//
// Returns:
//   - *AWSKMSSigner: A new AWS KMS signer instance
//   - error: An error if the AWS session cannot be created or the key is invalid
func NewAWSKMSSigner(keyID, region string) (*AWSKMSSigner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSKMSSignerWithClient(kms.New(sess), keyID)
}

// NewAWSKMSSignerWithClient derives the signer address from the public key of keyID.
func NewAWSKMSSignerWithClient(client kmsiface.KMSAPI, keyID string) (*AWSKMSSigner, error) {
	address, err := kmsKeyAddress(client, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address from KMS key: %w", err)
	}
	return &AWSKMSSigner{
		kmsClient: client,
		keyID:     keyID,
		address:   address,
	}, nil
}

// GetTransactOpts returns bind.TransactOpts whose Signer delegates to KMS.
func (a *AWSKMSSigner) GetTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, errors.New("chain id is required")
	}
	txSigner := types.LatestSignerForChainID(chainID)
	return &bind.TransactOpts{
		From:    a.address,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != a.address {
				return nil, fmt.Errorf("address mismatch: expected %s, got %s", a.address.Hex(), address.Hex())
			}
			sig, err := a.signDigest(ctx, txSigner.Hash(tx).Bytes())
			if err != nil {
				return nil, err
			}
			return tx.WithSignature(txSigner, sig)
		},
	}, nil
}

// GetNoSendTransactOpts returns KMS-backed signing options that never broadcast.
func (a *AWSKMSSigner) GetNoSendTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	return noSend(a.GetTransactOpts(ctx, chainID))
}

// GetAddress returns the Ethereum address derived from the KMS key.
func (a *AWSKMSSigner) GetAddress() (common.Address, error) {
	return a.address, nil
}

type ecdsaSignature struct {
	R, S *big.Int
}

// signDigest asks KMS for a DER signature over digest and converts it to the
// 65 byte [R || S || V] form go-ethereum expects.
func (a *AWSKMSSigner) signDigest(ctx context.Context, digest []byte) ([]byte, error) {
	out, err := a.kmsClient.SignWithContext(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyID),
		Message:          digest,
		MessageType:      aws.String(kms.MessageTypeDigest),
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		return nil, fmt.Errorf("KMS signing failed: %w", err)
	}

	var der ecdsaSignature
	if _, err := asn1.Unmarshal(out.Signature, &der); err != nil {
		return nil, fmt.Errorf("failed to parse KMS signature: %w", err)
	}
	// KMS may return a high-S signature, which Ethereum rejects
	s := der.S
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(crypto.S256().Params().N, s)
	}

	sig := make([]byte, crypto.SignatureLength)
	der.R.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])
	for v := byte(0); v < 2; v++ {
		sig[64] = v
		pub, err := crypto.SigToPub(digest, sig)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*pub) == a.address {
			return sig, nil
		}
	}
	return nil, errors.New("failed to determine recovery ID")
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

func kmsKeyAddress(client kmsiface.KMSAPI, keyID string) (common.Address, error) {
	out, err := client.GetPublicKey(&kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get public key from KMS: %w", err)
	}
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return common.Address{}, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(spki.PublicKey.Bytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to parse public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
