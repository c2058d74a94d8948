package logistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Arquillian IntegrationTest", "arquillian-integrationtest"},
		{"São Paulo — Norte", "sao-paulo-norte"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Route 66!!", "route-66"},
		{"already-a-slug", "already-a-slug"},
		{"ÉCOLE", "ecole"},
		{"***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.name))
		})
	}
}

func TestSlugifyCollidingNames(t *testing.T) {
	assert.Equal(t, Slugify("My Map"), Slugify("my   map"))
	assert.Equal(t, Slugify("My Map"), Slugify("MY-MAP"))
}
