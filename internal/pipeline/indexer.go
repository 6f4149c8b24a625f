// Package pipeline 包含消费图片生命周期事件的后台处理器。
package pipeline

import (
	"context"
	"fmt"

	"picvault-go/internal/model"
	"picvault-go/pkg/es"
	"picvault-go/pkg/log"
	"picvault-go/pkg/tasks"
)

// Indexer 消费图片生命周期事件并维护 Elasticsearch 检索索引。
// 它实现了 kafka.TaskProcessor 接口。
type Indexer struct {
	indexName string
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(indexName string) *Indexer {
	return &Indexer{indexName: indexName}
}

// Process 根据事件类型更新索引：上传事件写入文档，删除事件移除文档。
func (i *Indexer) Process(ctx context.Context, task tasks.ImageEventTask) error {
	switch task.Event {
	case tasks.EventImageUploaded:
		doc := model.EsImageDocument{
			FileName:      task.FileName,
			OriginalName:  task.OriginalName,
			DirectoryName: task.DirectoryName,
			Description:   task.Description,
			ContentType:   task.ContentType,
			FileSize:      task.FileSize,
			URL:           task.URL,
			UploadedAt:    task.UploadedAt,
		}
		if err := es.IndexImage(ctx, i.indexName, doc); err != nil {
			return err
		}
		log.Infof("[Indexer] 已索引图片: %s/%s", task.DirectoryName, task.FileName)
		return nil

	case tasks.EventImageDeleted:
		if err := es.DeleteImage(ctx, i.indexName, task.DirectoryName, task.FileName); err != nil {
			return err
		}
		log.Infof("[Indexer] 已移除索引: %s/%s", task.DirectoryName, task.FileName)
		return nil

	default:
		return fmt.Errorf("未知的图片事件类型: %s", task.Event)
	}
}
