// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"picvault-go/internal/config"
	"picvault-go/internal/model"
	"picvault-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 图片元数据索引：original_name / description 全文检索，其余字段精确过滤
	mapping := `{
		"mappings": {
			"properties": {
				"file_name": { "type": "keyword" },
				"original_name": { "type": "text" },
				"directory_name": { "type": "keyword" },
				"description": { "type": "text" },
				"content_type": { "type": "keyword" },
				"file_size": { "type": "long" },
				"url": { "type": "keyword", "index": false },
				"uploaded_at": { "type": "date" }
			}
		}
	}`

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexImage 将单条图片元数据索引到 Elasticsearch。
// 文档 ID 为 "目录名/文件名"，与对象存储的键一致。
func IndexImage(ctx context.Context, indexName string, doc model.EsImageDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.DirectoryName + "/" + doc.FileName,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引图片元数据到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index image document")
	}

	return nil
}

// DeleteImage 从索引中移除一条图片元数据。文档不存在时视为成功。
func DeleteImage(ctx context.Context, indexName, directoryName, fileName string) error {
	req := esapi.DeleteRequest{
		Index:      indexName,
		DocumentID: directoryName + "/" + fileName,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("从 Elasticsearch 删除图片元数据出错: %s", res.String())
		return errors.New("failed to delete image document")
	}

	return nil
}

// SearchImages 在索引中按关键词检索图片元数据。
// directoryName 为空时检索全部目录。
func SearchImages(ctx context.Context, indexName, query, directoryName string, size int) ([]model.EsImageDocument, error) {
	must := []map[string]interface{}{
		{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"original_name", "description"},
			},
		},
	}
	if directoryName != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"directory_name": directoryName},
		})
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"size": size,
		"sort": []map[string]interface{}{
			{"uploaded_at": map[string]interface{}{"order": "desc"}},
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch 检索出错: %s", res.String())
		return nil, errors.New("failed to search image documents")
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source model.EsImageDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	docs := make([]model.EsImageDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
