package helper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"platial-atlas/internal/domain/model"
)

// ParseBBox "west,south,east,north" 形式の文字列を範囲に変換する
// 逆順の指定は正規化して受け付ける
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return orb.Bound{}, model.NewValidationError("bbox", "west,south,east,north の4つの数値が必要です")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !isFinite(f) {
			return orb.Bound{}, model.NewValidationError("bbox", fmt.Sprintf("%d番目の値 %q は数値ではありません", i+1, p))
		}
		v[i] = f
	}

	for _, lng := range []float64{v[0], v[2]} {
		if lng < -180 || lng > 180 {
			return orb.Bound{}, model.NewValidationError("bbox", "経度は-180から180の範囲で指定してください")
		}
	}
	for _, lat := range []float64{v[1], v[3]} {
		if lat < -90 || lat > 90 {
			return orb.Bound{}, model.NewValidationError("bbox", "緯度は-90から90の範囲で指定してください")
		}
	}

	return orb.MultiPoint{{v[0], v[1]}, {v[2], v[3]}}.Bound(), nil
}

// ParseResolution 解像度を変換する（空ならデフォルト値）
func ParseResolution(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	res, err := strconv.Atoi(s)
	if err != nil {
		return 0, model.NewValidationError("res", fmt.Sprintf("整数ではありません: %q", s))
	}
	if !model.IsValidResolution(res) {
		return 0, model.NewValidationError("res", fmt.Sprintf("%dから%dの範囲で指定してください", model.MinResolution, model.MaxResolution))
	}
	return res, nil
}

// ParseSourceList カンマ区切りの取り込み元を変換する（重複除去、順序維持）
// 全取り込み元を指定した場合は絞り込みなし（nil）として扱う
func ParseSourceList(s string) ([]model.Source, error) {
	var out []model.Source
	seen := make(map[model.Source]struct{})
	for _, token := range splitList(s) {
		src, ok := model.ParseSource(token)
		if !ok {
			return nil, model.NewValidationError("source", fmt.Sprintf("不明な取り込み元です: %q", token))
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	if len(out) == len(model.AllSources) {
		return nil, nil
	}
	return out, nil
}

// ParseFacetList カンマ区切りのファセットを変換する（合計 "n" は除外）
func ParseFacetList(s string) ([]model.Category, error) {
	var out []model.Category
	seen := make(map[model.Category]struct{})
	for _, token := range splitList(s) {
		if token == model.FacetTotal {
			continue
		}
		cat, ok := model.ParseCategory(token)
		if !ok {
			return nil, model.NewValidationError("facet", fmt.Sprintf("不明なファセットです: %q", token))
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out, nil
}

// ParseMetric 旧エンドポイントの指標を変換する（空なら合計）
func ParseMetric(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == model.FacetTotal {
		return model.FacetTotal, nil
	}
	cat, ok := model.ParseCategory(s)
	if !ok {
		return "", model.NewValidationError("metric", fmt.Sprintf("不明な指標です: %q", s))
	}
	return string(cat), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
