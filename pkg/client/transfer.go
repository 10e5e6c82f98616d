package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/deb2000-sudo/cloudvault/internal/protocol"
)

type uploadInitRequest struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

// Upload reads localPath and uploads it into directoryID ("" for root),
// driving FILE_UPLOAD_INIT/CHUNK/COMPLETE in order. showProgress renders a
// progress bar on progressbar's default writer (standard output), the same
// UX teacher's cmd/sender gives the user during a transfer.
func (c *Client) Upload(localPath, directoryID, contentType string, showProgress bool) (fileID string, err error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("client: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("client: stat %s: %w", localPath, err)
	}

	initBody, _ := json.Marshal(uploadInitRequest{
		FileName: info.Name(), FileSize: info.Size(), ContentType: contentType,
	})
	initMeta := map[string]string{}
	if directoryID != "" {
		initMeta["DirectoryId"] = directoryID
	}
	initResp, err := c.request(protocol.FileUploadInitRequest, initMeta, initBody)
	if err != nil {
		return "", err
	}
	fileID = initResp.Meta("FileId")

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetDescription("uploading "+info.Name()),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	buf := make([]byte, protocol.ChunkSize)
	chunkIndex := 0
	for {
		n, readErr := io.ReadFull(f, buf)
		if n == 0 && readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return fileID, fmt.Errorf("client: read chunk %d: %w", chunkIndex, readErr)
		}

		isLast := readErr == io.EOF || readErr == io.ErrUnexpectedEOF || int64(chunkIndex+1)*int64(protocol.ChunkSize) >= info.Size()
		chunkBody := make([]byte, n)
		copy(chunkBody, buf[:n])

		resp, err := c.request(protocol.FileUploadChunkRequest, map[string]string{
			"FileId":      fileID,
			"ChunkIndex":  itoa(chunkIndex),
			"IsLastChunk": boolString(isLast),
		}, chunkBody)
		if err != nil {
			expected := ""
			if resp != nil {
				expected = resp.Meta("ExpectedChunkIndex")
			}
			return fileID, fmt.Errorf("client: upload chunk %d: %w (server expected %s)",
				chunkIndex, err, expected)
		}
		if bar != nil {
			_ = bar.Add(n)
		}

		chunkIndex++
		if isLast {
			break
		}
	}

	if _, err := c.request(protocol.FileUploadCompleteRequest, map[string]string{"FileId": fileID}, nil); err != nil {
		return fileID, err
	}
	return fileID, nil
}

// Download reads fileID from the server and writes it to localPath, driving
// FILE_DOWNLOAD_INIT/CHUNK/COMPLETE in order.
func (c *Client) Download(fileID, localPath string, showProgress bool) error {
	initResp, err := c.request(protocol.FileDownloadInitRequest, map[string]string{"FileId": fileID}, nil)
	if err != nil {
		return err
	}
	fileSize, _ := atoi64(initResp.Meta("FileSize"))

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("client: create %s: %w", localPath, err)
	}
	defer out.Close()

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions64(fileSize,
			progressbar.OptionSetDescription("downloading "+initResp.Meta("FileName")),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for chunkIndex := 0; ; chunkIndex++ {
		resp, err := c.request(protocol.FileDownloadChunkRequest, map[string]string{
			"FileId":     fileID,
			"ChunkIndex": itoa(chunkIndex),
		}, nil)
		if err != nil {
			return fmt.Errorf("client: download chunk %d: %w", chunkIndex, err)
		}
		if _, err := out.Write(resp.Payload); err != nil {
			return fmt.Errorf("client: write chunk %d: %w", chunkIndex, err)
		}
		if bar != nil {
			_ = bar.Add(len(resp.Payload))
		}
		if resp.Meta("IsLastChunk") == "true" {
			break
		}
	}

	_, err = c.request(protocol.FileDownloadCompleteRequest, map[string]string{"FileId": fileID}, nil)
	return err
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func atoi64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
