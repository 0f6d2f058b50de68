package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/apiwrap-go/apiclient"
)

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry().Register("order_bot", func(*apiclient.Request) any { return "order" })

	tests := []struct {
		name    string
		lookup  string
		wantErr bool
	}{
		{name: "given registered snake name, then resolves", lookup: "order_bot"},
		{name: "given camel case name, then resolves the same entry", lookup: "OrderBot"},
		{name: "given unknown name, then returns model not found", lookup: "invoice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := reg.Lookup(tt.lookup)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrModelNotFound))

				var notFound *ModelNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, tt.lookup, notFound.Name)
				assert.Equal(t, "model not exists: invoice", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "order", f(nil))
		})
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry().
		Register("lead", func(*apiclient.Request) any { return nil }).
		Register("order_bot", func(*apiclient.Request) any { return nil }).
		Register("Lead", func(*apiclient.Request) any { return nil })

	assert.Equal(t, []string{"Lead", "OrderBot"}, reg.Names())
}

func TestRegistry_NilFactory(t *testing.T) {
	reg := NewRegistry().Register("lead", nil)

	_, err := reg.Lookup("lead")
	assert.ErrorIs(t, err, ErrModelNotFound)
}
