package transfer

import (
	"testing"

	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

func newUploadCtx(fileSize int64) *Context {
	return NewUpload(&model.FileMetadata{ID: "f1", FileSize: fileSize})
}

// TestInvariantChunkOrdering exercises testable property 3: in a successful
// upload, the accepted ChunkIndex sequence is exactly 0, 1, ..., totalChunks-1.
func TestInvariantChunkOrdering(t *testing.T) {
	c := newUploadCtx(2_621_440) // spec.md S3: 2.5 MiB -> 3 chunks
	if c.TotalChunks != 3 {
		t.Fatalf("TotalChunks = %d, want 3", c.TotalChunks)
	}

	for i := 0; i < c.TotalChunks; i++ {
		if err := c.ValidateUploadChunk("f1", i, 10); err != nil {
			t.Fatalf("chunk %d: unexpected rejection: %v", i, err)
		}
		c.AdvanceUpload()
	}
	if c.NextExpectedIndex != c.TotalChunks {
		t.Errorf("NextExpectedIndex = %d, want %d after full upload", c.NextExpectedIndex, c.TotalChunks)
	}
}

func TestOutOfOrderChunkRejectedThenRecovers(t *testing.T) {
	c := newUploadCtx(2_621_440)

	if err := c.ValidateUploadChunk("f1", 1, 10); err != ErrChunkOutOfOrder {
		t.Fatalf("ValidateUploadChunk(1) = %v, want %v", err, ErrChunkOutOfOrder)
	}
	// Rejection must not have advanced the expected index.
	if err := c.ValidateUploadChunk("f1", 0, 10); err != nil {
		t.Fatalf("ValidateUploadChunk(0) after rejection: %v", err)
	}
}

func TestValidateUploadChunkRejectsWrongFileID(t *testing.T) {
	c := newUploadCtx(10)
	if err := c.ValidateUploadChunk("other-file", 0, 10); err != ErrFileIDMismatch {
		t.Errorf("err = %v, want %v", err, ErrFileIDMismatch)
	}
}

func TestValidateUploadChunkRejectsEmptyPayload(t *testing.T) {
	c := newUploadCtx(10)
	if err := c.ValidateUploadChunk("f1", 0, 0); err != ErrEmptyChunk {
		t.Errorf("err = %v, want %v", err, ErrEmptyChunk)
	}
}

func TestDownloadAllowsRandomAccess(t *testing.T) {
	c := NewDownload(&model.FileMetadata{ID: "f1", FileSize: 2_621_440})
	for _, idx := range []int{2, 0, 1, 0} {
		if err := c.ValidateDownloadChunk("f1"); err != nil {
			t.Errorf("ValidateDownloadChunk for index %d: %v", idx, err)
		}
	}
}

func TestTotalChunksMatchesSpecExample(t *testing.T) {
	if got := TotalChunks(2_621_440); got != 3 {
		t.Errorf("TotalChunks(2621440) = %d, want 3", got)
	}
}
