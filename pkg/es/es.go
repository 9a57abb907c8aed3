// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"clinic-chat-go/internal/config"
	"clinic-chat-go/internal/model"
	"clinic-chat-go/pkg/log"
)

const chatTurnMapping = `{
	"mappings": {
		"properties": {
			"turn_id":    { "type": "long" },
			"user_id":    { "type": "long" },
			"patient_id": { "type": "long" },
			"role":       { "type": "keyword" },
			"content":    { "type": "text" },
			"created_at": { "type": "date" }
		}
	}
}`

// Client 封装了聊天记录索引的读写。
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient 创建 Elasticsearch 客户端并确保索引存在。
func NewClient(esCfg config.ElasticsearchConfig, transport http.RoundTripper) (*Client, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{es: client, index: esCfg.IndexName}
	if err := c.createIndexIfNotExists(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (c *Client) createIndexIfNotExists(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(chatTurnMapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.index, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.index)
	return nil
}

// IndexTurn 写入一条聊天记录。文档 ID 为记录 ID，重复投递是幂等的。
func (c *Client) IndexTurn(ctx context.Context, doc model.ChatTurnDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: strconv.FormatUint(uint64(doc.TurnID), 10),
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引聊天记录到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("failed to index turn %d: %s", doc.TurnID, res.Status())
	}
	return nil
}

// SearchQuery 描述一次聊天记录检索。PatientID 为 0 时不限患者。
type SearchQuery struct {
	OwnerID   uint
	PatientID uint
	Text      string
	Size      int
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                `json:"_score"`
			Source model.ChatTurnDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildQuery 生成检索请求体，结果总是限定在 OwnerID 之内。
func BuildQuery(q SearchQuery) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"user_id": q.OwnerID}},
	}
	if q.PatientID != 0 {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"patient_id": q.PatientID}})
	}
	size := q.Size
	if size <= 0 {
		size = 20
	}
	return map[string]interface{}{
		"size":         size,
		"track_scores": true,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []interface{}{map[string]interface{}{"match": map[string]interface{}{"content": q.Text}}},
				"filter": filters,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
}

// SearchTurns 全文检索用户的聊天记录。
func (c *Client) SearchTurns(ctx context.Context, q SearchQuery) ([]model.ChatSearchHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(BuildQuery(q)); err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search returned %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]model.ChatSearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, model.ChatSearchHit{
			TurnID:    h.Source.TurnID,
			PatientID: h.Source.PatientID,
			Role:      h.Source.Role,
			Content:   h.Source.Content,
			CreatedAt: h.Source.CreatedAt,
			Score:     h.Score,
		})
	}
	return hits, nil
}
