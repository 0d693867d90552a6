package oss

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/codexalpha/blueprint_go_server/config"
)

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// UploadCodexDocument 上传整理后的 codex 文档快照（markdown）
func (c *Client) UploadCodexDocument(runID, codexID int64, data []byte) (string, error) {
	objectKey := fmt.Sprintf("codexes/%d/%d/%d.md", runID, codexID, time.Now().Unix())

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType("text/markdown"))
	if err != nil {
		return "", fmt.Errorf("failed to upload codex document: %w", err)
	}

	return c.GetURL(objectKey), nil
}

// DeleteRunDocuments 删除 run 下所有文档快照
func (c *Client) DeleteRunDocuments(runID int64) error {
	prefix := fmt.Sprintf("codexes/%d/", runID)

	marker := ""
	for {
		lor, err := c.bucket.ListObjects(oss.Prefix(prefix), oss.Marker(marker))
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, object := range lor.Objects {
			if err := c.bucket.DeleteObject(object.Key); err != nil {
				return fmt.Errorf("failed to delete object %s: %w", object.Key, err)
			}
		}
		if !lor.IsTruncated {
			return nil
		}
		marker = lor.NextMarker
	}
}

// GetURL 对象访问地址，优先使用 CDN 域名
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", strings.TrimSuffix(c.cdnDomain, "/"), objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, endpointHost(c.client.Config.Endpoint), objectKey)
}

func endpointHost(endpoint string) string {
	host := strings.TrimPrefix(endpoint, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}
