package artifacts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	sigV4Algorithm = "AWS4-HMAC-SHA256"
	sigV4Service   = "s3"
)

// S3Client uploads files to an S3-compatible bucket with path-style
// addressing and SigV4 signed PUT requests.
type S3Client struct {
	endpoint  string
	bucket    string
	region    string
	accessKey string
	secretKey string
	http      *http.Client
	now       func() time.Time
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string // "auto" when empty
	AccessKey string
	SecretKey string
}

// S3ConfigFromEnv reads DOL_ARTIFACTS_* variables. ok is false when no
// endpoint is configured.
func S3ConfigFromEnv() (cfg S3Config, ok bool) {
	cfg = S3Config{
		Endpoint:  os.Getenv("DOL_ARTIFACTS_ENDPOINT"),
		Bucket:    os.Getenv("DOL_ARTIFACTS_BUCKET"),
		Region:    os.Getenv("DOL_ARTIFACTS_REGION"),
		AccessKey: os.Getenv("DOL_ARTIFACTS_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("DOL_ARTIFACTS_SECRET_ACCESS_KEY"),
	}
	return cfg, strings.TrimSpace(cfg.Endpoint) != ""
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if endpoint == "" || bucket == "" || access == "" || secret == "" {
		return nil, fmt.Errorf("artifacts: endpoint, bucket, access key and secret key are required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("artifacts: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("artifacts: invalid endpoint %q", endpoint)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}
	return &S3Client{
		endpoint:  strings.TrimRight(u.String(), "/"),
		bucket:    bucket,
		region:    region,
		accessKey: access,
		secretKey: secret,
		http:      &http.Client{Timeout: 2 * time.Minute},
		now:       time.Now,
	}, nil
}

func (c *S3Client) PutFile(ctx context.Context, key, localPath string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("artifacts: empty object key")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("artifacts: %s is a directory", localPath)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	payloadHash := hex.EncodeToString(h.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	uri := "/" + c.bucket + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+uri, f)
	if err != nil {
		return err
	}
	req.ContentLength = st.Size()
	req.Header.Set("Content-Type", contentType(key))
	c.sign(req, uri, payloadHash, c.now().UTC())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	return fmt.Errorf("artifacts: put %s: status=%d body=%s", key, resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *S3Client) sign(req *http.Request, uri, payloadHash string, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	day := now.Format("20060102")
	host := req.URL.Host

	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)

	const signedHeaders = "host;x-amz-content-sha256;x-amz-date"
	canonical := strings.Join([]string{
		req.Method,
		uri,
		"",
		"host:" + host + "\nx-amz-content-sha256:" + payloadHash + "\nx-amz-date:" + amzDate + "\n",
		signedHeaders,
		payloadHash,
	}, "\n")
	scope := day + "/" + c.region + "/" + sigV4Service + "/aws4_request"
	canonicalSum := sha256.Sum256([]byte(canonical))
	toSign := sigV4Algorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(canonicalSum[:])

	key := hmacSHA256([]byte("AWS4"+c.secretKey), []byte(day))
	key = hmacSHA256(key, []byte(c.region))
	key = hmacSHA256(key, []byte(sigV4Service))
	key = hmacSHA256(key, []byte("aws4_request"))
	sig := hex.EncodeToString(hmacSHA256(key, []byte(toSign)))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		sigV4Algorithm, c.accessKey, scope, signedHeaders, sig))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".zst"):
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" || clean == "." {
		return ""
	}
	return clean
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}
