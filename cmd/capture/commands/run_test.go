package commands

import (
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/stretchr/testify/require"
)

func TestRunFlagsRequest(t *testing.T) {
	f := runFlags{
		captureType:  capture.TypeHearings,
		credentialID: 3,
		courtID:      4,
		from:         "2024-03-01",
		to:           "2024-03-31",
		status:       "f",
		skipParties:  true,
	}
	req, err := f.request()
	require.NoError(t, err)
	require.Equal(t, uint(3), req.CredentialID)
	require.Equal(t, uint(4), req.CourtID)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, driver.PortalLocation()), req.Params.From)
	require.Equal(t, "F", req.Params.HearingStatus)
	require.True(t, req.Params.SkipParties)

	f.captureType = "everything"
	_, err = f.request()
	require.ErrorIs(t, err, capture.ErrUnknownType)

	f.captureType = capture.TypeHearings
	f.from = "yesterday"
	_, err = f.request()
	require.Error(t, err)
}
