package contracts

const projectListingABI = `[
	{"type":"function","name":"listProject","stateMutability":"payable","inputs":[{"name":"name","type":"string"},{"name":"description","type":"string"}],"outputs":[]},
	{"type":"function","name":"projects","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
		{"name":"","type":"tuple","components":[
			{"name":"id","type":"uint256"},
			{"name":"name","type":"string"},
			{"name":"description","type":"string"},
			{"name":"owner","type":"address"},
			{"name":"subscriptionEndTime","type":"uint256"},
			{"name":"isListed","type":"bool"},
			{"name":"totalDonations","type":"uint256"}
		]}
	]},
	{"type":"function","name":"subscriptionFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"projectCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"ProjectListed","anonymous":false,"inputs":[
		{"name":"projectId","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"name","type":"string","indexed":false}
	]}
]`

const daoABI = `[
	{"type":"function","name":"joinDAO","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"minStakeAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"members","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[
		{"name":"","type":"tuple","components":[
			{"name":"stakedAmount","type":"uint256"},
			{"name":"isMember","type":"bool"}
		]}
	]},
	{"type":"function","name":"projectRequests","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
		{"name":"","type":"tuple","components":[
			{"name":"projectId","type":"uint256"},
			{"name":"projectOwner","type":"address"},
			{"name":"name","type":"string"},
			{"name":"description","type":"string"},
			{"name":"yesVotes","type":"uint256"},
			{"name":"noVotes","type":"uint256"},
			{"name":"isApproved","type":"bool"},
			{"name":"isProcessed","type":"bool"}
		]}
	]},
	{"type":"function","name":"voteOnProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"vote","type":"bool"}],"outputs":[]},
	{"type":"function","name":"hasVoted","stateMutability":"view","inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"NewMember","anonymous":false,"inputs":[
		{"name":"member","type":"address","indexed":true},
		{"name":"stakedAmount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Voted","anonymous":false,"inputs":[
		{"name":"voter","type":"address","indexed":true},
		{"name":"projectId","type":"uint256","indexed":true},
		{"name":"support","type":"bool","indexed":false}
	]}
]`

const donateABI = `[
	{"type":"function","name":"donateToProject","stateMutability":"payable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"totalDonationsPerProject","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"donorDonations","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"uint256"}],"outputs":[
		{"name":"","type":"tuple","components":[
			{"name":"donor","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"projectId","type":"uint256"},
			{"name":"timestamp","type":"uint256"}
		]}
	]},
	{"type":"event","name":"Donation","anonymous":false,"inputs":[
		{"name":"donor","type":"address","indexed":true},
		{"name":"projectId","type":"uint256","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`
