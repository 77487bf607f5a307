package models_test

import (
	"bytes"
	"testing"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "Empty", data: []byte{}},
		{name: "PNG header", data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
		{name: "All byte values", data: func() []byte {
			b := make([]byte, 256)
			for i := range b {
				b[i] = byte(i)
			}
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := models.NewAttachment("image/png", tt.data)

			decoded, err := models.DecodeAttachment(a.MIMEType, a.Base64())
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.data, decoded.Data))
			assert.Equal(t, "image/png", decoded.MIMEType)
		})
	}
}

func TestDecodeAttachmentInvalid(t *testing.T) {
	_, err := models.DecodeAttachment("image/png", "not base64!")
	assert.Error(t, err)
}

func TestAttachmentDataURL(t *testing.T) {
	a := models.NewAttachment("image/jpeg", []byte("abc"))
	assert.Equal(t, "data:image/jpeg;base64,YWJj", a.DataURL())
}

func TestConversationAppendDoesNotMutate(t *testing.T) {
	base := make(models.Conversation, 1, 4)
	base[0] = models.TextMessage(models.RoleUser, "hello")

	first := base.Append(models.TextMessage(models.RoleAssistant, "one"))
	second := base.Append(models.TextMessage(models.RoleAssistant, "two"))

	require.Len(t, base, 1)
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, "one", first[1].Text())
	assert.Equal(t, "two", second[1].Text())
}

func TestConversationWithImage(t *testing.T) {
	conv := models.Conversation{
		models.TextMessage(models.RoleSystem, "role"),
		models.TextMessage(models.RoleUser, "describe"),
	}
	img := models.NewAttachment("image/png", []byte{1, 2, 3})

	withImg := conv.WithImage(img)

	require.Len(t, withImg, 2)
	assert.Len(t, conv[1].Contents, 1, "original conversation must be left untouched")
	require.Len(t, withImg[1].Contents, 2)
	assert.Equal(t, models.ContentTypeImage, withImg[1].Contents[1].Type)
	assert.Equal(t, []models.Attachment{img}, withImg[1].Images())
	assert.Equal(t, "describe", withImg[1].Text())

	assert.Empty(t, models.Conversation{}.WithImage(img))
}

func TestConversationConcat(t *testing.T) {
	a := models.Conversation{models.TextMessage(models.RoleUser, "a")}
	b := models.Conversation{models.TextMessage(models.RoleUser, "b"), models.TextMessage(models.RoleUser, "c")}

	res := a.Concat(b, nil, a)

	texts := make([]string, len(res))
	for i, m := range res {
		texts[i] = m.Text()
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, texts)
}

func TestConversationRender(t *testing.T) {
	conv := models.Conversation{
		models.TextMessage(models.RoleSystem, "be brief"),
		models.TextMessage(models.RoleUser, "look").WithImage(models.NewAttachment("image/png", []byte{1, 2})),
	}

	assert.Equal(t, "[system] be brief\n[user] look <image image/png, 2 bytes>", conv.Render())
}
