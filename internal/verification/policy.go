package verification

import "github.com/Ugender2729/F1-Mart-sub001/internal/domain"

// RefundPolicy says which terminal states leave a refund path open. It is applied
// after a transition and never changes which transitions are allowed.
type RefundPolicy map[domain.VerificationState]bool

// DefaultRefundPolicy keeps refunds open only for disputed deliveries.
var DefaultRefundPolicy = RefundPolicy{
	domain.VerificationVerified:     false,
	domain.VerificationDisputed:     true,
	domain.VerificationAutoVerified: false,
}

func (p RefundPolicy) RefundEligible(s domain.VerificationState) bool {
	if !s.IsTerminal() {
		return false
	}
	return p[s]
}
