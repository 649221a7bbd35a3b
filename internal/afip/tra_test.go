package afip

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLoginTicket_Ventana(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	tra := BuildLoginTicket(ServiceWSFE, now)

	// generationTime = now − 10min, expirationTime = now + 10min, exactly.
	assert.True(t, tra.GenerationTime.Equal(now.Add(-10*time.Minute)))
	assert.True(t, tra.ExpirationTime.Equal(now.Add(10*time.Minute)))
	assert.Equal(t, ServiceWSFE, tra.Service)
	assert.Equal(t, now.Unix(), tra.UniqueID)
}

func TestBuildLoginTicket_Deterministico(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, BuildLoginTicket("x", now), BuildLoginTicket("x", now))
}

func TestLoginTicketXML_FormatoYOffset(t *testing.T) {
	// 2025-03-10 15:30 UTC = 12:30 in -03:00
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	tra := BuildLoginTicket(ServicePadron, now)

	out, err := tra.XML()
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `<loginTicketRequest version="1.0">`)
	assert.Contains(t, s, "<generationTime>2025-03-10T12:20:00-03:00</generationTime>")
	assert.Contains(t, s, "<expirationTime>2025-03-10T12:40:00-03:00</expirationTime>")
	assert.Contains(t, s, "<service>ws_sr_padron_a5</service>")
	assert.True(t, strings.HasPrefix(s, "<?xml"))
}
