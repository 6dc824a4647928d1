package netx

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

func UploadToPresignedURL(url string, blob []byte, contentType string) error {
	req, err := http.NewRequest("PUT", url, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
