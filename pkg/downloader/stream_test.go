package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libretto-pm/libretto-sub002/pkg/hashing"
	"github.com/libretto-pm/libretto-sub002/pkg/httpclient"
)

func newTestStreamDownloader(t *testing.T, handler http.HandlerFunc) (*StreamDownloader, string) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := httpclient.New(httpclient.DefaultConfig(), nil)
	return NewStreamDownloader(client, nil), ts.URL
}

func TestDownloadStreamingVerifiesChecksum(t *testing.T) {
	content := []byte("package archive contents")
	sum := sha256.Sum256(content)

	downloader, url := newTestStreamDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	})

	dest := filepath.Join(t.TempDir(), "out.zip")
	result, err := downloader.Download(context.Background(), url, dest, []ExpectedChecksum{
		{Algorithm: hashing.AlgorithmSHA256, Hex: hex.EncodeToString(sum[:])},
	})
	require.NoError(t, err)

	assert.Equal(t, dest, result.Path)
	assert.Equal(t, int64(len(content)), result.Size)
	assert.False(t, result.Resumed)
	assert.False(t, result.UsedMmap)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadRejectsChecksumMismatch(t *testing.T) {
	downloader, url := newTestStreamDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("actual bytes"))
	})

	dest := filepath.Join(t.TempDir(), "out.zip")
	_, err := downloader.Download(context.Background(), url, dest, []ExpectedChecksum{
		{Algorithm: hashing.AlgorithmSHA256, Hex: "0000000000000000000000000000000000000000000000000000000000000000"},
	})
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "a failed-verification download must not leave the final file in place")
}

func TestDownloadUsesMmapStrategyAboveThreshold(t *testing.T) {
	content := make([]byte, mmapThreshold+1024)
	for i := range content {
		content[i] = byte(i % 251)
	}

	downloader, url := newTestStreamDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", itoa(int64(len(content))))
		_, _ = w.Write(content)
	})

	dest := filepath.Join(t.TempDir(), "big.zip")
	result, err := downloader.Download(context.Background(), url, dest, nil)
	require.NoError(t, err)

	assert.True(t, result.UsedMmap)
	assert.Equal(t, int64(len(content)), result.Size)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRangeHeaderFormatsOffset(t *testing.T) {
	assert.Equal(t, "bytes=0-", rangeHeader(0))
	assert.Equal(t, "bytes=4096-", rangeHeader(4096))
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "123456", itoa(123456))
}
