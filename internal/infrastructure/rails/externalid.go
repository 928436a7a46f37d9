package rails

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

// External id format: <PREFIX>-<claimID>-<6 hex>. The claim id is embedded
// so polling can re-derive the claim without extra lookups, and the digest
// ties the id to the issuing rail. Deterministic: re-submitting the same
// claim to the same rail yields the same id, which is what makes duplicate
// submission jobs converge.

func prefixFor(rail connector.Rail) string {
	switch rail {
	case connector.RailCDAnet:
		return "CDN"
	case connector.RailEClaims:
		return "ECL"
	case connector.RailPortal:
		return "PRT"
	}
	return "UNK"
}

func digestFor(rail connector.Rail, claimID string) string {
	sum := sha256.Sum256([]byte(rail.String() + ":" + claimID))
	return hex.EncodeToString(sum[:3])
}

// ExternalID derives the rail tracking id for a claim.
func ExternalID(rail connector.Rail, claimID string) string {
	return fmt.Sprintf("%s-%s-%s", prefixFor(rail), claimID, digestFor(rail, claimID))
}

// ParseExternalID recovers the claim id from an external id, verifying
// both the rail prefix and the digest. Ids minted by another rail or
// tampered with fail with ErrForeignExternalID.
func ParseExternalID(rail connector.Rail, externalID string) (string, error) {
	prefix := prefixFor(rail) + "-"
	if !strings.HasPrefix(externalID, prefix) {
		return "", fmt.Errorf("%w: %q lacks prefix %s", connector.ErrForeignExternalID, externalID, prefixFor(rail))
	}

	rest := strings.TrimPrefix(externalID, prefix)
	cut := strings.LastIndex(rest, "-")
	if cut <= 0 || cut == len(rest)-1 {
		return "", fmt.Errorf("%w: malformed id %q", connector.ErrForeignExternalID, externalID)
	}

	claimID, digest := rest[:cut], rest[cut+1:]
	if digest != digestFor(rail, claimID) {
		return "", fmt.Errorf("%w: digest mismatch in %q", connector.ErrForeignExternalID, externalID)
	}

	return claimID, nil
}
