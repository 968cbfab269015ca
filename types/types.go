package types

import (
	"fmt"
	"strconv"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventNewProposalType = "new_proposal"
	EventVoteType        = "vote"
	EventPaymentMadeType = "payment_made"
	EventTransferType    = "transfer"
)

type EventNewProposal struct {
	Proposal    uint64    `json:"proposal"`
	Proposer    string    `json:"proposer"`
	Amount      uint64    `json:"amount"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
}

func EncodeEventNewProposal(event *EventNewProposal) abci.Event {
	return abci.Event{
		Type: EventNewProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "proposer", Value: event.Proposer, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "description", Value: event.Description, Index: false},
			{Key: "deadline", Value: event.Deadline.UTC().Format(time.RFC3339Nano), Index: false},
		},
	}
}

func DecodeEventNewProposal(originEvent abci.Event) *EventNewProposal {
	event := &EventNewProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "proposer":
			event.Proposer = v.Value
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount = amount
		case "description":
			event.Description = v.Value
		case "deadline":
			deadline, err := time.Parse(time.RFC3339Nano, v.Value)
			if err != nil {
				return nil
			}
			event.Deadline = deadline
		}
	}
	return event
}

type EventVote struct {
	Proposal uint64 `json:"proposal"`
	Voter    string `json:"voter"`
	Support  bool   `json:"support"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "support", Value: fmt.Sprintf("%v", event.Support), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "voter":
			event.Voter = v.Value
		case "support":
			support, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Support = support
		}
	}
	return event
}

type EventPaymentMade struct {
	Proposal uint64 `json:"proposal"`
	Proposer string `json:"proposer"`
	Amount   uint64 `json:"amount"`
}

func EncodeEventPaymentMade(event *EventPaymentMade) abci.Event {
	return abci.Event{
		Type: EventPaymentMadeType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "proposer", Value: event.Proposer, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
		},
	}
}

func DecodeEventPaymentMade(originEvent abci.Event) *EventPaymentMade {
	event := &EventPaymentMade{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "proposer":
			event.Proposer = v.Value
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount = amount
		}
	}
	return event
}

type EventTransfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func EncodeEventTransfer(event *EventTransfer) abci.Event {
	return abci.Event{
		Type: EventTransferType,
		Attributes: []abci.EventAttribute{
			{Key: "from", Value: event.From, Index: true},
			{Key: "to", Value: event.To, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
		},
	}
}

func DecodeEventTransfer(originEvent abci.Event) *EventTransfer {
	event := &EventTransfer{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "from":
			event.From = v.Value
		case "to":
			event.To = v.Value
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount = amount
		}
	}
	return event
}
