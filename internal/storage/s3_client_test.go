package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chat-sync/internal/domain/message"
	chat_errors "chat-sync/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, f.err
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed/" + aws.ToString(in.Key) + "?ttl=" + opts.Expires.String()}, nil
}

func file(name string) message.File {
	return message.File{Name: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("abc")}
}

func TestUpload_PublicBase(t *testing.T) {
	api := &fakeS3{}
	c := newClient(S3Config{Bucket: "b", PublicBase: "https://cdn.example/"}, api, fakePresigner{}, "u1")

	media, err := c.Upload(context.Background(), file("../../etc/cat.png"))
	require.NoError(t, err)

	require.Len(t, api.puts, 1)
	key := aws.ToString(api.puts[0].Key)
	assert.True(t, strings.HasPrefix(key, "uploads/u1/"), key)
	assert.True(t, strings.HasSuffix(key, "/cat.png"), key)
	assert.Equal(t, "b", aws.ToString(api.puts[0].Bucket))
	assert.Equal(t, int64(3), aws.ToInt64(api.puts[0].ContentLength))

	assert.Equal(t, "https://cdn.example/"+key, media.URL)
	assert.Equal(t, "../../etc/cat.png", media.FileName)
	assert.Equal(t, "image/png", media.MediaType)
}

func TestUpload_PresignedWhenPrivate(t *testing.T) {
	c := newClient(S3Config{Bucket: "b"}, &fakeS3{}, fakePresigner{}, "u1")

	media, err := c.Upload(context.Background(), file("a.png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(media.URL, "https://signed/uploads/u1/"))
	assert.True(t, strings.HasSuffix(media.URL, "?ttl=24h0m0s"))
}

func TestUpload_Validation(t *testing.T) {
	c := newClient(S3Config{Bucket: "b", MaxSize: 2}, &fakeS3{}, fakePresigner{}, "u1")

	tests := map[string]message.File{
		"no body":   {Name: "a", ContentType: "x", Size: 1},
		"no name":   {Name: " ", ContentType: "x", Size: 1, Body: strings.NewReader("a")},
		"no type":   {Name: "a", Size: 1, Body: strings.NewReader("a")},
		"too large": {Name: "a", ContentType: "x", Size: 3, Body: strings.NewReader("abc")},
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Upload(context.Background(), f)
			assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
		})
	}
}

func TestUpload_PutFailure(t *testing.T) {
	boom := errors.New("boom")
	c := newClient(S3Config{Bucket: "b", PublicBase: "https://cdn"}, &fakeS3{err: boom}, fakePresigner{}, "u1")

	_, err := c.Upload(context.Background(), file("a.png"))
	assert.ErrorIs(t, err, boom)
}

func TestNewClient_RequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), S3Config{Region: "us-east-1"}, "u1")
	assert.Error(t, err)
}
