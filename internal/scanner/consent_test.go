// internal/scanner/consent_test.go
package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tagprobe/tagprobe-cli/internal/config"
)

func consentConfig() config.ConsentConfig {
	return config.ConsentConfig{
		ButtonSelector: "#onetrust-accept-btn-handler",
		WaitTimeout:    100 * time.Millisecond,
		SettleTime:     10 * time.Millisecond,
	}
}

func TestAcceptConsent_BannerPresent(t *testing.T) {
	page := &fakePage{}

	err := AcceptConsent(context.Background(), page, consentConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"#onetrust-accept-btn-handler"}, page.clicked)
	require.Len(t, page.slept, 1, "consent-gated scripts need a settle period after the click")
	assert.Equal(t, 10*time.Millisecond, page.slept[0])
}

func TestAcceptConsent_BannerAbsentIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	page := &fakePage{waitVisibleErr: context.DeadlineExceeded}

	err := AcceptConsent(context.Background(), page, consentConfig(), zap.New(core))
	require.NoError(t, err)
	assert.Empty(t, page.clicked)

	entries := logs.FilterMessageSnippet("No consent banner").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}

func TestAcceptConsent_ClickFailureIsFatal(t *testing.T) {
	page := &fakePage{clickErr: errors.New("element detached")}

	err := AcceptConsent(context.Background(), page, consentConfig(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be accepted")
}
