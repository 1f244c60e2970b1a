package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader creates a multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["file"]) > 0 {
		fileHeader := form.File["file"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateAttachmentFile_AllowedFormats(t *testing.T) {
	for _, name := range []string{"quote.pdf", "scan.png", "photo.jpg", "photo.jpeg", "prices.xlsx", "QUOTE.PDF"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			assert.NoError(t, ValidateAttachmentFile(fileHeader))
		})
	}
}

func TestValidateAttachmentFile_FileTooLarge(t *testing.T) {
	content := []byte("fake pdf content")
	fileHeader := createTestFileHeader("large.pdf", 11*1024*1024, content)
	require.NotNil(t, fileHeader)

	err := ValidateAttachmentFile(fileHeader)
	assert.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok, "Error should be of type FileUploadError")
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "File size exceeds maximum allowed size")
}

func TestValidateAttachmentFile_Empty(t *testing.T) {
	fileHeader := createTestFileHeader("empty.pdf", 0, []byte("x"))
	require.NotNil(t, fileHeader)

	err := ValidateAttachmentFile(fileHeader)
	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok)
	assert.Equal(t, "EMPTY_FILE", fileErr.Code)
}

func TestValidateAttachmentFile_InvalidFormat(t *testing.T) {
	for _, name := range []string{"test.gif", "script.exe", "testfile", "notes.docx"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			err := ValidateAttachmentFile(fileHeader)
			fileErr, ok := err.(*FileUploadError)
			require.True(t, ok, "Error should be of type FileUploadError")
			assert.Equal(t, "INVALID_FILE_FORMAT", fileErr.Code)
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFor("a.PDF"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("a.jpeg"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a.bin"))
}

func TestAttachmentKey(t *testing.T) {
	now := time.Unix(0, 42)
	key := AttachmentKey("order-1", "../../My Quote (v2).pdf", now)

	assert.Equal(t, "orders/order-1/42_My_Quote_v2_.pdf", key)
	assert.False(t, strings.Contains(key, ".."))
}

func TestReadUploadedFile(t *testing.T) {
	content := []byte("%PDF-1.4 fake")
	fileHeader := createTestFileHeader("quote.pdf", int64(len(content)), content)
	require.NotNil(t, fileHeader)

	got, err := ReadUploadedFile(fileHeader)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFileUploadError_Error(t *testing.T) {
	err := &FileUploadError{
		Code:    "TEST_CODE",
		Message: "Test error message",
	}

	assert.Equal(t, "Test error message", err.Error())
}
