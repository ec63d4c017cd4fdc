// Package s3store implements an S3-object-backed transport.Transport
// variant: one archive volume maps to one S3 object. It lets
// volwriter/volreader run unmodified against a basepath of the form
// "s3://bucket/key" -- volpath.ForVolume's naming scheme still produces
// the per-volume key suffix, only the transport underneath changes.
//
// Grounded on the teacher's file/s3file package (file.File implementation
// backed by a ClientProvider + s3iface.S3API), trimmed from its general
// seekable-file/range-read/multipart-upload machinery to the volume I/O
// core's simpler access pattern: a volume is read or written once,
// sequentially, start to finish, so whole-object GetObject/PutObject
// suffices instead of s3file's chunked ranged reads and multipart
// uploader.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/transport"
)

// Scheme is the basepath prefix s3store volumes use.
const Scheme = "s3://"

// ParseURL splits "s3://bucket/key" into its bucket and key parts,
// equivalent in purpose to s3file's ParseURL.
func ParseURL(path string) (bucket, key string, err error) {
	if !strings.HasPrefix(path, Scheme) {
		return "", "", fmt.Errorf("s3store: %q is not an s3:// path", path)
	}
	rest := strings.TrimPrefix(path, Scheme)
	idx := strings.IndexByte(rest, '/')
	if idx < 0 || idx == 0 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("s3store: %q is not of the form s3://bucket/key", path)
	}
	return rest[:idx], rest[idx+1:], nil
}

// ClientProvider returns an s3iface.S3API for a given bucket, mirroring
// s3file's ClientProvider interface trimmed to the single-client case
// this module needs (no region discovery, no multi-client retry list).
type ClientProvider interface {
	Client(ctx context.Context, bucket string) (s3iface.S3API, error)
}

// NewDefaultProvider returns a ClientProvider that creates one S3 client
// from a single AWS session, ignoring bucket (equivalent to s3file's
// NewDefaultProvider with a fixed single region).
func NewDefaultProvider(sess *session.Session) ClientProvider {
	return staticProvider{client: s3.New(sess)}
}

type staticProvider struct{ client s3iface.S3API }

func (p staticProvider) Client(context.Context, string) (s3iface.S3API, error) {
	return p.client, nil
}

// Register installs this package as the handler for "s3://" basepaths via
// transport.RegisterScheme, the remote-store analog of the teacher's
// file.RegisterImplementation("s3", ...) call in cmd/grail-file/main.go.
// Call it once at process start, after constructing a ClientProvider.
func Register(provider ClientProvider) {
	transport.RegisterScheme(Scheme, func(path string, mode transport.Mode, _ transport.OpenOptions) (transport.Transport, error) {
		return Open(context.Background(), provider, path, mode)
	})
}

// Open returns a Transport backed by the S3 object at path
// ("s3://bucket/key"). Read mode fetches the whole object up front; write
// mode buffers in memory and uploads on Close, matching archwriter's "one
// volume, one sequential write pass" access pattern.
func Open(ctx context.Context, provider ClientProvider, path string, mode transport.Mode) (transport.Transport, error) {
	bucket, key, err := ParseURL(path)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "s3store: parse path", err)
	}
	client, err := provider.Client(ctx, bucket)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "s3store: get client for bucket "+bucket, err)
	}
	if mode == transport.ModeWrite {
		return &s3Transport{ctx: ctx, client: client, bucket: bucket, key: key, wbuf: &bytes.Buffer{}}, nil
	}
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "s3store: GetObject "+path, err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "s3store: read object body "+path, err)
	}
	return &s3Transport{ctx: ctx, client: client, bucket: bucket, key: key, rbuf: bytes.NewReader(body)}, nil
}

// s3Transport is byte-granular and non-quantized, like the Regular
// variant; S3 has no device-block alignment concept.
type s3Transport struct {
	ctx    context.Context
	client s3iface.S3API
	bucket string
	key    string

	rbuf *bytes.Reader // read mode
	wbuf *bytes.Buffer // write mode
}

func (t *s3Transport) Read(p []byte) (int, error) {
	if t.rbuf == nil {
		return 0, archerr.E(archerr.Fatal, "s3store: transport opened for writing, not reading")
	}
	return t.rbuf.Read(p)
}

func (t *s3Transport) Write(p []byte) (int, error) {
	if t.wbuf == nil {
		return 0, archerr.E(archerr.Fatal, "s3store: transport opened for reading, not writing")
	}
	return t.wbuf.Write(p)
}

func (t *s3Transport) Skip(n int64) error {
	if t.rbuf == nil {
		return archerr.E(archerr.Fatal, "s3store: cannot skip a write transport")
	}
	if _, err := t.rbuf.Seek(n, io.SeekCurrent); err != nil {
		return archerr.E(archerr.Fatal, "s3store: skip", err)
	}
	return nil
}

func (t *s3Transport) DevBlockSize() int { return 1 }

// Close uploads the buffered object in write mode via PutObject -- single
// request, no multipart uploader, since a volume's splitsize already
// bounds its size to something a single PutObject comfortably handles.
func (t *s3Transport) Close() error {
	if t.wbuf == nil {
		return nil
	}
	_, err := t.client.PutObjectWithContext(t.ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key),
		Body:   bytes.NewReader(t.wbuf.Bytes()),
	})
	if err != nil {
		return archerr.E(archerr.Fatal, "s3store: PutObject", err)
	}
	return nil
}
