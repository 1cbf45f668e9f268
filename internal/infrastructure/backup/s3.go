// Package backup резервные копии базы, правил и журнала в S3-совместимом хранилище
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"elimfilters/internal/config"
)

// timestampLayout суффикс ключа; лексикографический порядок совпадает с хронологическим
const timestampLayout = "20060102T150405Z"

// ObjectAPI подмножество клиента S3, используемое бэкапом
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Object описание сохраненной копии
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// S3Backup загрузка и восстановление файлов
type S3Backup struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewS3Backup создает клиент по конфигурации. Пустой endpoint означает AWS
func NewS3Backup(ctx context.Context, cfg *config.BackupConfig, logger *zap.Logger) (*S3Backup, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("backup bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3BackupWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3BackupWithClient создает бэкап поверх готового клиента
func NewS3BackupWithClient(client ObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Backup {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Backup{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// KeyFor строит ключ копии: <prefix><name>/<name>-<timestamp><ext>
func (b *S3Backup) KeyFor(localPath string, at time.Time) string {
	base := filepath.Base(localPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return b.prefix + path.Join(name, name+"-"+at.UTC().Format(timestampLayout)+ext)
}

// Upload загружает файл и возвращает ключ объекта
func (b *S3Backup) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	key := b.KeyFor(localPath, b.now())
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	b.logger.Info("Backup uploaded",
		zap.String("bucket", b.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size()),
	)
	return key, nil
}

// Download скачивает объект во временный файл рядом с dest и переименовывает его
func (b *S3Backup) Download(ctx context.Context, key, dest string) error {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer result.Body.Close()

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, result.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move backup into place: %w", err)
	}

	b.logger.Info("Backup restored", zap.String("key", key), zap.String("dest", dest))
	return nil
}

// List возвращает копии под префиксом, новые первыми.
// name ограничивает список копиями одного файла
func (b *S3Backup) List(ctx context.Context, name string) ([]Object, error) {
	prefix := b.prefix
	if name != "" {
		prefix += strings.TrimSuffix(name, filepath.Ext(name)) + "/"
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			item := Object{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				item.LastModified = *obj.LastModified
			}
			objects = append(objects, item)
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key > objects[j].Key
	})
	return objects, nil
}

// Latest ключ самой свежей копии файла
func (b *S3Backup) Latest(ctx context.Context, name string) (string, error) {
	objects, err := b.List(ctx, name)
	if err != nil {
		return "", err
	}
	if len(objects) == 0 {
		return "", fmt.Errorf("no backups found for %s", name)
	}
	return objects[0].Key, nil
}
