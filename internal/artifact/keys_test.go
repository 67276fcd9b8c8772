package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/standards-cli/internal/model"
)

func TestName(t *testing.T) {
	tests := []struct {
		recnum, title, want string
	}{
		{"2-258", "Biological evaluation of medical devices", "2-258_Biological_evaluation_of"},
		{"5-129", "Medical  electrical\tequipment", "5-129_Medical_electrical_equipment"},
		{"7-1", "Sterilization", "7-1_Sterilization"},
		{"12-300", "IEC/TR 60601-4-2: EMC?", "12-300_IEC_TR_60601-4-2__EMC_"},
		{"3-9", `Gloves "nitrile" <latex>`, "3-9_Gloves__nitrile___latex_"},
		{" 1-1", "", "1-1_"},
	}
	for _, tt := range tests {
		e := model.CatalogEntry{StandardRecord: model.StandardRecord{RecognitionNumber: tt.recnum, Title: tt.title}}
		assert.Equal(t, tt.want, Name(e), tt.title)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a_b_c_d", SanitizeName("a\nb\rc\\d"))
	assert.Equal(t, "x", SanitizeName("  x  "))
}

func TestKeysFor(t *testing.T) {
	e := model.CatalogEntry{StandardRecord: model.StandardRecord{
		RecognitionNumber: "2-258",
		Title:             "Biological evaluation of medical devices",
	}}

	k := KeysFor("FDA_STANDARDS/", e)
	assert.Equal(t, "FDA_STANDARDS/PDF/2-258_Biological_evaluation_of.pdf", k.PDF)
	assert.Equal(t, "FDA_STANDARDS/HTML/2-258_Biological_evaluation_of.html", k.HTML)

	assert.Equal(t, k, KeysFor("", e))
}
