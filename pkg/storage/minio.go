// Package storage 提供了与对象存储服务（MinIO）交互的功能。
// 对象按 "目录名/文件名" 的键组织在单一 bucket 下。
package storage

import (
	"context"
	"io"
	"time"

	"picvault-go/internal/config"
	"picvault-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo 描述对象存储中一个对象的基本属性。
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Client 封装了针对单一 bucket 的对象存储操作。
type Client struct {
	cli    *minio.Client
	bucket string
}

// NewClient 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	// 检查存储桶是否存在，如果不存在则创建
	ctx := context.Background()
	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}

	log.Info("MinIO 客户端初始化成功")
	return &Client{cli: cli, bucket: cfg.BucketName}, nil
}

// Ping 检查对象存储是否可达。
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.BucketExists(ctx, c.bucket)
	return err
}

// Put 将一个对象写入存储桶。
func (c *Client) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := c.cli.PutObject(ctx, c.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Fetch 读取一个对象的全部内容，并返回其 Content-Type。
func (c *Client) Fetch(ctx context.Context, objectName string) ([]byte, string, error) {
	obj, err := c.cli.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", err
	}
	stat, err := obj.Stat()
	if err != nil {
		return nil, "", err
	}
	return data, stat.ContentType, nil
}

// Stat 返回一个对象的属性；对象不存在时返回错误。
func (c *Client) Stat(ctx context.Context, objectName string) (ObjectInfo, error) {
	stat, err := c.cli.StatObject(ctx, c.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

// Remove 删除一个对象。删除不存在的键不会返回错误（S3 语义）。
func (c *Client) Remove(ctx context.Context, objectName string) error {
	return c.cli.RemoveObject(ctx, c.bucket, objectName, minio.RemoveObjectOptions{})
}

// List 列出指定前缀下的所有对象。
func (c *Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo
	for obj := range c.cli.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		result = append(result, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}
	return result, nil
}

// PresignedURL 为对象生成一个限时的公开访问地址。
func (c *Client) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := c.cli.PresignedGetObject(ctx, c.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
