package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id                uint64 `gorm:"primary_key" json:"-"`
	ProposalIndex     uint64 `gorm:"unique_index" json:"proposal"`
	ProposerAddress   string `gorm:"index" json:"proposer_address"`
	Amount            uint64 `json:"amount"`
	Description       string `json:"description"`
	VotesFor          uint64 `json:"votes_for"`
	VotesAgainst      uint64 `json:"votes_against"`
	Paid              bool   `json:"paid"`
	NewHeight         uint64 `json:"new_height"`
	PaidHeight        uint64 `json:"paid_height"`
	DeadlineTimestamp int64  `json:"deadline_timestamp"`
}

type ProposalVote struct {
	Id           uint64 `gorm:"primary_key" json:"id"`
	Proposal     uint64 `gorm:"index" json:"proposal"`
	VoterAddress string `gorm:"index" json:"voter_address"`
	Support      bool   `json:"support"`
	Height       uint64 `json:"height"`
}

type Payment struct {
	Id              uint64 `gorm:"primary_key" json:"id"`
	Proposal        uint64 `gorm:"unique_index" json:"proposal"`
	ProposerAddress string `json:"proposer_address"`
	Amount          uint64 `json:"amount"`
	Height          uint64 `json:"height"`
}

type Transfer struct {
	Id          uint64 `gorm:"primary_key" json:"id"`
	FromAddress string `gorm:"index" json:"from_address"`
	ToAddress   string `gorm:"index" json:"to_address"`
	Amount      uint64 `json:"amount"`
	Height      uint64 `json:"height"`
}
