package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SalaryBenchmark 市场薪资基准样本（xlsx 一行）
type SalaryBenchmark struct {
	Role        string
	Seniority   string
	Area        string
	MonthlyRate float64
}

// MarketRateQuery 市场价查询条件，空字段不过滤。
// 匹配不区分大小写
type MarketRateQuery struct {
	Role      string
	Seniority string
	Area      string
}

// MarketRateResult 市场价查询结果
type MarketRateResult struct {
	SampleCount int     `json:"sample_count"`
	Average     float64 `json:"average"`
	Median      float64 `json:"median"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

// SalaryDatasetService 市场薪资基准数据集。
// 数据集来自 xlsx 文件，启动时整表加载进内存，之后只读
type SalaryDatasetService struct {
	mu      sync.RWMutex
	samples []SalaryBenchmark
	logger  *zap.Logger
}

// NewSalaryDatasetService 创建数据集服务（空数据集，需 LoadFromFile）
func NewSalaryDatasetService(logger *zap.Logger) *SalaryDatasetService {
	return &SalaryDatasetService{logger: logger}
}

// LoadFromFile 从 xlsx 加载数据集，替换现有样本。
// 表头行：Role | Seniority | Area | Monthly Rate。
// 单行解析失败跳过并记日志，不中断整表加载
func (s *SalaryDatasetService) LoadFromFile(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("failed to open salary dataset: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close salary dataset file", zap.Error(err))
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("salary dataset has no sheets: %s", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("failed to read salary dataset rows: %w", err)
	}

	var samples []SalaryBenchmark
	for i, row := range rows {
		if i == 0 {
			// 表头
			continue
		}
		if len(row) < 4 {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil || rate <= 0 {
			s.logger.Warn("Skipping salary dataset row with bad rate",
				zap.Int("row", i+1),
				zap.String("value", row[3]),
			)
			continue
		}
		samples = append(samples, SalaryBenchmark{
			Role:        strings.TrimSpace(row[0]),
			Seniority:   strings.TrimSpace(row[1]),
			Area:        strings.TrimSpace(row[2]),
			MonthlyRate: rate,
		})
	}

	s.mu.Lock()
	s.samples = samples
	s.mu.Unlock()

	s.logger.Info("Salary dataset loaded",
		zap.String("path", path),
		zap.Int("samples", len(samples)),
	)
	return nil
}

// SetSamples 直接注入样本，测试用
func (s *SalaryDatasetService) SetSamples(samples []SalaryBenchmark) {
	s.mu.Lock()
	s.samples = samples
	s.mu.Unlock()
}

// MarketRate 按条件聚合市场价。没有匹配样本时返回 ErrNotFound
func (s *SalaryDatasetService) MarketRate(_ context.Context, q MarketRateQuery) (*MarketRateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rates []float64
	for _, sample := range s.samples {
		if !matchField(q.Role, sample.Role) ||
			!matchField(q.Seniority, sample.Seniority) ||
			!matchField(q.Area, sample.Area) {
			continue
		}
		rates = append(rates, sample.MonthlyRate)
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no salary benchmark matches query", ErrNotFound)
	}

	sort.Float64s(rates)
	var total float64
	for _, r := range rates {
		total += r
	}

	return &MarketRateResult{
		SampleCount: len(rates),
		Average:     round2(total / float64(len(rates))),
		Median:      round2(median(rates)),
		Min:         rates[0],
		Max:         rates[len(rates)-1],
	}, nil
}

func matchField(want, have string) bool {
	return want == "" || strings.EqualFold(strings.TrimSpace(want), have)
}

// median 入参必须已排序且非空
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
