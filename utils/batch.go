package utils

import (
	"context"
	"sync"
)

// BatchConfig 批量操作配置
type BatchConfig struct {
	// BatchSize 每批数量
	BatchSize int
	// Concurrency 单批内的并发数量
	Concurrency int
	// OnProgress 进度回调，串行调用
	OnProgress func(progress BatchProgress)
}

// BatchProgress 批量操作进度
type BatchProgress struct {
	Completed  int
	Total      int
	Percentage int // 0-100
	Success    int
	Failed     int
}

// DefaultBatchConfig 返回默认批量配置
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:   50,
		Concurrency: 5,
	}
}

// BatchQueryResult 批量查询结果
//
// Results 按输入顺序排列，只包含成功项；失败项按输入顺序记录在 Errors 中。
type BatchQueryResult[T any] struct {
	Results []T
	Errors  []BatchError
	Total   int
	Success int
	Failed  int
}

// BatchError 批量操作错误
type BatchError struct {
	// Index 输入中的下标
	Index int
	Error error
}

type batchSlot[R any] struct {
	value R
	err   error
	done  bool
}

// BatchQuery 批量查询
//
// 按 BatchSize 分批，每批内最多 Concurrency 个并发调用 queryFn。
// ctx 取消后尚未开始的项以 ctx.Err() 记为失败。
//
// 示例：
//
//	res, err := BatchQuery(ctx, addrs, func(ctx context.Context, addr types.Address, _ int) (*vault.Snapshot, error) {
//	    return svc.GetVault(ctx, addr)
//	}, DefaultBatchConfig())
func BatchQuery[T any, R any](
	ctx context.Context,
	items []T,
	queryFn func(ctx context.Context, item T, index int) (R, error),
	config *BatchConfig,
) (*BatchQueryResult[R], error) {
	cfg := DefaultBatchConfig()
	if config != nil {
		cfg.OnProgress = config.OnProgress
		if config.BatchSize > 0 {
			cfg.BatchSize = config.BatchSize
		}
		if config.Concurrency > 0 {
			cfg.Concurrency = config.Concurrency
		}
	}

	slots := make([]batchSlot[R], len(items))
	var (
		mu       sync.Mutex
		progress = BatchProgress{Total: len(items)}
	)

	finish := func(idx int, value R, err error) {
		mu.Lock()
		defer mu.Unlock()
		slots[idx] = batchSlot[R]{value: value, err: err, done: true}
		progress.Completed++
		if err != nil {
			progress.Failed++
		} else {
			progress.Success++
		}
		progress.Percentage = progress.Completed * 100 / progress.Total
		if cfg.OnProgress != nil {
			cfg.OnProgress(progress)
		}
	}

	for start, batch := range BatchArray(items, cfg.BatchSize) {
		offset := start * cfg.BatchSize
		var wg sync.WaitGroup
		sem := make(chan struct{}, cfg.Concurrency)

		for i, item := range batch {
			idx := offset + i
			wg.Add(1)
			go func(idx int, item T) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				if err := ctx.Err(); err != nil {
					var zero R
					finish(idx, zero, err)
					return
				}
				value, err := queryFn(ctx, item, idx)
				finish(idx, value, err)
			}(idx, item)
		}
		wg.Wait()
	}

	out := &BatchQueryResult[R]{
		Results: make([]R, 0, len(items)),
		Errors:  make([]BatchError, 0),
		Total:   len(items),
		Success: progress.Success,
		Failed:  progress.Failed,
	}
	for i, slot := range slots {
		if slot.err != nil {
			out.Errors = append(out.Errors, BatchError{Index: i, Error: slot.err})
			continue
		}
		out.Results = append(out.Results, slot.value)
	}
	return out, nil
}

// BatchArray 将数组按 batchSize 切分
func BatchArray[T any](array []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = len(array)
	}
	batches := make([][]T, 0)
	for i := 0; i < len(array); i += batchSize {
		end := i + batchSize
		if end > len(array) {
			end = len(array)
		}
		batches = append(batches, array[i:end])
	}
	return batches
}
