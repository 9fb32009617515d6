package library

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/config"
)

// S3Source lists tracks from a bucket prefix and mirrors them into a local
// cache directory on demand. ffprobe and ffmpeg only ever see local paths.
type S3Source struct {
	api      *s3.S3
	bucket   string
	prefix   string
	cacheDir string
}

func NewS3Source(cfg *config.Config) (*S3Source, error) {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.S3.KeyID, cfg.S3.AppKey, ""),
		Endpoint:         aws.String(cfg.S3.Endpoint),
		Region:           aws.String(cfg.S3.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	sess, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}

	if err := os.MkdirAll(cfg.Library.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", cfg.Library.CacheDir, err)
	}

	return &S3Source{
		api:      s3.New(sess),
		bucket:   cfg.S3.Bucket,
		prefix:   cfg.S3.Prefix,
		cacheDir: cfg.Library.CacheDir,
	}, nil
}

func (s *S3Source) List() ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}
	err := s.api.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			key := aws.StringValue(item.Key)
			if IsAudioFile(filepath.Base(key)) {
				keys = append(keys, key)
			}
		}
		return true
	})
	return keys, err
}

// Localize downloads the object into the cache unless it is already there.
// The download goes through a temp file and an atomic rename so a crash never
// leaves a truncated track that a later pass would try to play.
func (s *S3Source) Localize(key string) (string, error) {
	dest := filepath.Join(s.cacheDir, sanitizeKey(key))

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return dest, nil
	}

	log.Printf("Cache miss, downloading %s", key)
	if err := s.download(key, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *S3Source) download(key, dest string) error {
	out, err := s.api.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}

func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, "/", "__")
}
