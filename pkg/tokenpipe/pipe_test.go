package tokenpipe_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudhands/burst/pkg/tokenpipe"
	"github.com/stretchr/testify/require"
)

func TestReaderDecodesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcloud-1.pipe")

	r, err := tokenpipe.Open(path)
	require.NoError(t, err)

	done := make(chan struct{})
	go r.Run(done)
	defer close(done)

	go func() {
		w, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return
		}
		defer w.Close()
		w.WriteString("reg-123|vcloud-1|alice|s3cret\n")
	}()

	select {
	case rec := <-r.C:
		require.Equal(t, "reg-123", rec.RegistrationUUID)
		require.Equal(t, "vcloud-1", rec.ProviderName)
		require.Equal(t, "alice", rec.UserName)
		require.Equal(t, "s3cret", rec.UserPass)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for record")
	}
}
