package notify

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
)

func TestBuildMessage(t *testing.T) {
	attachment := []byte("report contents with several lines\nline two\n")
	msg := buildMessage("digest@localhost", "operator@example.com",
		"Job postings digest", "see attached", "digest.txt", attachment)

	assert.Contains(t, msg, "From: digest@localhost\r\n")
	assert.Contains(t, msg, "To: operator@example.com\r\n")
	assert.Contains(t, msg, "Subject: Job postings digest\r\n")
	assert.Contains(t, msg, "Content-Type: multipart/mixed")
	assert.Contains(t, msg, "see attached")
	assert.Contains(t, msg, `filename="digest.txt"`)
	assert.True(t, strings.HasSuffix(msg, "--"+mimeBoundary+"--\r\n"))
}

func TestBuildMessage_AttachmentRoundTrips(t *testing.T) {
	attachment := make([]byte, 300)
	for i := range attachment {
		attachment[i] = byte(i % 251)
	}
	msg := buildMessage("a@b", "c@d", "s", "body", "digest.txt", attachment)

	// Pull the base64 block back out: everything between the attachment
	// headers and the closing boundary.
	parts := strings.Split(msg, "Content-Disposition: attachment; filename=\"digest.txt\"\r\n\r\n")
	require.Len(t, parts, 2)
	encoded := strings.Split(parts[1], "--"+mimeBoundary+"--")[0]

	for _, line := range strings.Split(strings.TrimSpace(encoded), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, attachment, decoded)
}

func TestService_Send_MissingAttachment(t *testing.T) {
	service := NewService(config.MailConfig{
		Host: "localhost", Port: 1025, From: "digest@localhost",
	})

	err := service.Send("op@example.com", "subject", "body",
		filepath.Join(t.TempDir(), "missing.txt"))

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrDelivery))
}

func TestService_Send_TransportFailure(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "digest.txt")
	require.NoError(t, os.WriteFile(artifact, []byte("report"), 0o644))

	// Port 1 refuses connections immediately.
	service := NewService(config.MailConfig{
		Host: "127.0.0.1", Port: 1, TLS: "none", From: "digest@localhost",
	})

	err := service.Send("op@example.com", "subject", "body", artifact)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrDelivery))
}
