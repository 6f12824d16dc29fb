package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category POIのカテゴリ（固定の語彙）
type Category string

const (
	CategoryAmenity         Category = "amenity"
	CategoryShop            Category = "shop"
	CategoryTourism         Category = "tourism"
	CategoryLeisure         Category = "leisure"
	CategoryLanduse         Category = "landuse"
	CategoryNatural         Category = "natural"
	CategoryHistoric        Category = "historic"
	CategoryHeritage        Category = "heritage"
	CategoryOffice          Category = "office"
	CategoryCraft           Category = "craft"
	CategoryAeroway         Category = "aeroway"
	CategoryAerialway       Category = "aerialway"
	CategoryRailway         Category = "railway"
	CategoryPublicTransport Category = "public_transport"
	CategoryManMade         Category = "man_made"
	CategoryHealthcare      Category = "healthcare"
	CategoryEmergency       Category = "emergency"
	CategoryClub            Category = "club"
	CategoryBuilding        Category = "building"
	CategorySport           Category = "sport"
	CategoryEducation       Category = "education"
	CategoryPlace           Category = "place"
	CategoryWaterway        Category = "waterway"
	CategoryHighway         Category = "highway"
	CategoryPower           Category = "power"
	CategoryBarrier         Category = "barrier"
	CategoryBoundary        Category = "boundary"
	CategoryRoute           Category = "route"
)

const numCategories = 28

// Categories 集計の内訳に出力する順序でのカテゴリ一覧
var Categories = [numCategories]Category{
	CategoryAmenity, CategoryShop, CategoryTourism, CategoryLeisure, CategoryLanduse,
	CategoryNatural, CategoryHistoric, CategoryHeritage, CategoryOffice, CategoryCraft,
	CategoryAeroway, CategoryAerialway, CategoryRailway, CategoryPublicTransport, CategoryManMade,
	CategoryHealthcare, CategoryEmergency, CategoryClub, CategoryBuilding, CategorySport,
	CategoryEducation, CategoryPlace, CategoryWaterway, CategoryHighway, CategoryPower,
	CategoryBarrier, CategoryBoundary, CategoryRoute,
}

var categoryIndex = func() map[Category]int {
	m := make(map[Category]int, numCategories)
	for i, c := range Categories {
		m[c] = i
	}
	return m
}()

// ParseCategory 文字列をカテゴリに変換する（大文字小文字・前後空白は無視）
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categoryIndex[c]; !ok {
		return "", false
	}
	return c, true
}

// FacetTotal 合計を表す疑似ファセット
const FacetTotal = "n"

// FacetGroup ファセットの分類
type FacetGroup string

const (
	FacetGroupOSM      FacetGroup = "osm"
	FacetGroupOverture FacetGroup = "overture"
)

// FacetDef 凡例表示用のファセット定義
type FacetDef struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Tooltip string     `json:"tooltip,omitempty"`
	Group   FacetGroup `json:"group"`
}

// Facets 表示順のファセット一覧（先頭は合計）
var Facets = []FacetDef{
	{Key: FacetTotal, Label: "Total", Tooltip: "All POIs matching filters", Group: FacetGroupOSM},
	{Key: string(CategoryAmenity), Label: "Amenity", Tooltip: "General amenities: schools, libraries, cafes, etc.", Group: FacetGroupOSM},
	{Key: string(CategoryShop), Label: "Shop", Tooltip: "Retail shops and outlets", Group: FacetGroupOSM},
	{Key: string(CategoryTourism), Label: "Tourism", Tooltip: "Attractions, viewpoints, information", Group: FacetGroupOSM},
	{Key: string(CategoryLeisure), Label: "Leisure", Tooltip: "Parks, recreation, sports centres", Group: FacetGroupOSM},
	{Key: string(CategoryLanduse), Label: "Landuse", Tooltip: "Tagged land uses (parks, industrial, etc.)", Group: FacetGroupOSM},
	{Key: string(CategoryNatural), Label: "Natural", Tooltip: "Natural features like woods, peaks", Group: FacetGroupOSM},
	{Key: string(CategoryHistoric), Label: "Historic", Tooltip: "Heritage and historic tags", Group: FacetGroupOSM},
	{Key: string(CategoryHeritage), Label: "Heritage", Tooltip: "Heritage designation tags", Group: FacetGroupOSM},
	{Key: string(CategoryOffice), Label: "Office", Tooltip: "Office buildings/locations", Group: FacetGroupOSM},
	{Key: string(CategoryCraft), Label: "Craft", Tooltip: "Craft-related locations", Group: FacetGroupOSM},
	{Key: string(CategoryAeroway), Label: "Aeroway", Tooltip: "Airports, runways, aviation facilities", Group: FacetGroupOSM},
	{Key: string(CategoryAerialway), Label: "Aerialway", Tooltip: "Cable cars, gondolas", Group: FacetGroupOSM},
	{Key: string(CategoryRailway), Label: "Railway", Tooltip: "Stations, stops, rail features", Group: FacetGroupOSM},
	{Key: string(CategoryPublicTransport), Label: "Public Transport", Tooltip: "Stops, platforms, interchanges", Group: FacetGroupOSM},
	{Key: string(CategoryManMade), Label: "Man-made", Tooltip: "Man-made structures", Group: FacetGroupOSM},
	{Key: string(CategoryHealthcare), Label: "Healthcare", Tooltip: "Clinics, hospitals, doctors", Group: FacetGroupOSM},
	{Key: string(CategoryEmergency), Label: "Emergency", Tooltip: "Fire stations, police, emergency access", Group: FacetGroupOSM},
	{Key: string(CategoryClub), Label: "Club", Tooltip: "Social & sports clubs", Group: FacetGroupOSM},
	{Key: string(CategorySport), Label: "Sport", Tooltip: "Sports pitches, facilities", Group: FacetGroupOSM},
	{Key: string(CategoryEducation), Label: "Education", Tooltip: "Schools, colleges, universities", Group: FacetGroupOSM},
	{Key: string(CategoryPlace), Label: "Place", Tooltip: "Settlements and named places", Group: FacetGroupOSM},
	{Key: string(CategoryWaterway), Label: "Waterway", Tooltip: "Rivers, canals, locks", Group: FacetGroupOSM},
	{Key: string(CategoryHighway), Label: "Highway", Tooltip: "Road-related features", Group: FacetGroupOSM},
	{Key: string(CategoryPower), Label: "Power", Tooltip: "Power lines, substations", Group: FacetGroupOSM},
	{Key: string(CategoryBarrier), Label: "Barrier", Tooltip: "Fences, walls, gates", Group: FacetGroupOSM},
	{Key: string(CategoryBoundary), Label: "Boundary", Tooltip: "Administrative boundaries", Group: FacetGroupOSM},
	{Key: string(CategoryRoute), Label: "Route", Tooltip: "Hiking, cycling, public transport routes", Group: FacetGroupOSM},
	{Key: string(CategoryBuilding), Label: "Buildings", Tooltip: "Overture buildings, OSM building tags", Group: FacetGroupOverture},
}

// CategoryCounts カテゴリ別件数（語彙の全キーを常に持つ固定長）
type CategoryCounts [numCategories]int64

// Get 指定カテゴリの件数を返す（語彙外は0）
func (c CategoryCounts) Get(cat Category) int64 {
	i, ok := categoryIndex[cat]
	if !ok {
		return 0
	}
	return c[i]
}

// Add 指定カテゴリに件数を加算する（語彙外は無視）
func (c *CategoryCounts) Add(cat Category, n int64) {
	if i, ok := categoryIndex[cat]; ok {
		c[i] += n
	}
}

// MarshalJSON 語彙順のJSONオブジェクトとして出力する
func (c CategoryCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cat := range Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(string(cat))
		buf.WriteString(`":`)
		buf.WriteString(strconv.FormatInt(c[i], 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON JSONオブジェクトから読み込む（語彙外のキーは無視、欠けたキーは0）
func (c *CategoryCounts) UnmarshalJSON(data []byte) error {
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("カテゴリ内訳のデコードに失敗: %w", err)
	}
	*c = CategoryCounts{}
	for k, v := range raw {
		c.Add(Category(k), v)
	}
	return nil
}

// Scan jsonbカラムからの読み込み（database/sql.Scanner）
func (c *CategoryCounts) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = CategoryCounts{}
		return nil
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("カテゴリ内訳として読み込めない型: %T", src)
	}
}
