package dedup

import (
	"crypto/sha256"
	"fmt"
)

const dateLayout = "2006-01-02"

// Fingerprint derives a stable content hash from normalized identity fields.
// The input is normalized title, organization, and date-only deadline in
// fixed order with NUL separators, so field reordering can never alias and
// any content change always produces a different digest.
//
// Description and URL are deliberately excluded: both are expected to vary
// per source (re-posted content, mirror URLs). Title + organization +
// deadline is the identity key of an opportunity posting, which makes this
// hash the basis of the exact-duplicate tier.
func Fingerprint(fields NormalizedFields) string {
	deadline := ""
	if fields.HasDeadline {
		deadline = fields.Deadline.Format(dateLayout)
	}

	org := ""
	if fields.HasOrganization {
		org = fields.Organization
	}

	h := sha256.New()
	// sha256.Hash.Write never returns an error per the hash.Hash contract.
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00%s", fields.Title, org, deadline)

	return fmt.Sprintf("%x", h.Sum(nil))
}
