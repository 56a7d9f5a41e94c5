package socket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockwrap/sockwrap-go/pkg/transport"
)

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))

	var e *ClassifiedError
	assert.False(t, e.IsTransportError())
	assert.False(t, e.IsNameResolutionError())
	assert.False(t, e.IsTLSError())
}

func TestClassifyDomains(t *testing.T) {
	tests := []struct {
		domain transport.ErrorDomain
		kind   ErrorKind
	}{
		{transport.DomainPOSIX, KindTransport},
		{transport.DomainDNS, KindNameResolution},
		{transport.DomainTLS, KindSecureTransport},
	}

	for _, tt := range tests {
		t.Run(tt.domain.String(), func(t *testing.T) {
			terr := &transport.Error{Domain: tt.domain, Code: 5, Err: errors.New("boom")}
			got := Classify(terr)
			require.NotNil(t, got)

			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, terr.Error(), got.Description)
			assert.Equal(t, terr.Error(), got.Error())
			assert.True(t, errors.Is(got, terr.Err))

			flags := 0
			for _, f := range []bool{got.IsTransportError(), got.IsNameResolutionError(), got.IsTLSError()} {
				if f {
					flags++
				}
			}
			assert.Equal(t, 1, flags, "exactly one kind must be set")
		})
	}
}

func TestClassifyCoversEveryDomain(t *testing.T) {
	for _, d := range transport.Domains() {
		assert.NotPanics(t, func() {
			Classify(&transport.Error{Domain: d, Err: errors.New("x")})
		})
	}
}

func TestClassifyUnknownDomainPanics(t *testing.T) {
	assert.Panics(t, func() {
		Classify(&transport.Error{Domain: transport.ErrorDomain(200), Err: errors.New("x")})
	})
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "name-resolution", KindNameResolution.String())
	assert.Equal(t, "tls", KindSecureTransport.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}
