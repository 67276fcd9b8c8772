// Package catalog reconciles crawled standards against the persisted catalog.
package catalog

import (
	"crypto/md5" //nolint:gosec // identity format is fixed, not a security boundary
	"encoding/hex"

	"github.com/sells-group/standards-cli/internal/model"
)

// IdentitySeparator joins the natural-key fields before hashing.
const IdentitySeparator = "|"

// Identity returns the hex MD5 digest of
// "recognitionNumber|sdo|designation". The format is shared with existing
// catalog rows and must not change.
func Identity(recognitionNumber, sdo, designation string) model.Identity {
	sum := md5.Sum([]byte(recognitionNumber + IdentitySeparator + sdo + IdentitySeparator + designation)) //nolint:gosec
	return model.Identity(hex.EncodeToString(sum[:]))
}

// RecordIdentity hashes the natural-key fields of r.
func RecordIdentity(r model.StandardRecord) model.Identity {
	return Identity(r.RecognitionNumber, r.SDO, r.Designation)
}
