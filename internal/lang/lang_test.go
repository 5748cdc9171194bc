package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEnglish(t *testing.T) {
	d := NewDetector()

	assert.True(t, d.IsEnglish(
		"This letter concerns the insurance claim you submitted last month. "+
			"Please find the assessment of the damages enclosed with this document.",
	))

	assert.False(t, d.IsEnglish(
		"Deze brief betreft de verzekeringsclaim die u vorige maand heeft ingediend. "+
			"Bijgevoegd vindt u de beoordeling van de schade.",
	))
}

func TestIsEnglish_EmptyInput(t *testing.T) {
	d := NewDetector()
	assert.False(t, d.IsEnglish(""))
	assert.False(t, d.IsEnglish("   \n\t  "))
}
