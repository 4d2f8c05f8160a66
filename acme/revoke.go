package acme

import (
	"context"
	"encoding/base64"
	"fmt"
)

// RevocationReason mirrors the CRL reason codes RFC 5280 §5.3.1 defines,
// the only values RFC 8555 §7.6 accepts in a revokeCert request.
type RevocationReason int

const (
	ReasonUnspecified          RevocationReason = 0
	ReasonKeyCompromise        RevocationReason = 1
	ReasonAffiliationChanged   RevocationReason = 3
	ReasonSuperseded           RevocationReason = 4
	ReasonCessationOfOperation RevocationReason = 5
)

type revokeCertRequest struct {
	Certificate string `json:"certificate"`
	Reason      *int   `json:"reason,omitempty"`
}

// RevokeCertificate revokes certDER (a single DER-encoded leaf, not a PEM
// chain), signed with the account key per spec.md §4.4 supplemented
// features.
func (c *Client) RevokeCertificate(ctx context.Context, certDER []byte, reason *RevocationReason) error {
	req := revokeCertRequest{Certificate: base64.RawURLEncoding.EncodeToString(certDER)}
	if reason != nil {
		r := int(*reason)
		req.Reason = &r
	}
	if _, err := c.post(ctx, c.dir.RevokeCert, req); err != nil {
		return fmt.Errorf("acme: revoke certificate: %w", err)
	}
	return nil
}
