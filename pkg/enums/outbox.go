package enums

import "fmt"

// OutboxEventType names the domain events queued for publication.
type OutboxEventType string

const (
	OutboxEventHarvestLogged     OutboxEventType = "harvest.logged"
	OutboxEventProducePickedUp   OutboxEventType = "produce.picked_up"
	OutboxEventProduceDelivered  OutboxEventType = "produce.delivered"
	OutboxEventQualityVerified   OutboxEventType = "produce.quality_verified"
	OutboxEventDisputeRaised     OutboxEventType = "dispute.raised"
	OutboxEventDisputeResolved   OutboxEventType = "dispute.resolved"
	OutboxEventSettlementPaid    OutboxEventType = "settlement.paid"
	OutboxEventProposalCreated   OutboxEventType = "governance.proposal_created"
	OutboxEventProposalExecuted  OutboxEventType = "governance.proposal_executed"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventHarvestLogged,
	OutboxEventProducePickedUp,
	OutboxEventProduceDelivered,
	OutboxEventQualityVerified,
	OutboxEventDisputeRaised,
	OutboxEventDisputeResolved,
	OutboxEventSettlementPaid,
	OutboxEventProposalCreated,
	OutboxEventProposalExecuted,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateProduceBatch OutboxAggregateType = "produce_batch"
	OutboxAggregateDispute      OutboxAggregateType = "dispute"
	OutboxAggregateProposal     OutboxAggregateType = "proposal"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	OutboxAggregateProduceBatch,
	OutboxAggregateDispute,
	OutboxAggregateProposal,
}

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
