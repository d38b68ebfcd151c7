package model

// Rect 请求中的种子矩形
type Rect struct {
	X      int `json:"x" form:"x"`
	Y      int `json:"y" form:"y"`
	Width  int `json:"width" form:"width"`
	Height int `json:"height" form:"height"`
}

// ProcessRequest 抠图请求（JSON）
type ProcessRequest struct {
	Image      string `json:"image"` // data URL 或纯 base64
	Rect       *Rect  `json:"rect"`
	Style      string `json:"style"`
	ResultType string `json:"result_type"` // 旧前端字段：normal / bw
	Iterations int    `json:"iterations"`
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CutoutResult 抠图结果，同时作为缓存内容
type CutoutResult struct {
	ID              string  `json:"id"`
	MD5             string  `json:"md5"`
	Style           string  `json:"style"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Rect            Rect    `json:"rect"`
	Iterations      int     `json:"iterations"`
	ResultImage     string  `json:"result_image"` // data URL，PNG
	MaskImage       string  `json:"mask_image"`   // data URL，PNG 单通道
	BoundingBox     BBox    `json:"bounding_box"`
	ForegroundRatio float64 `json:"foreground_ratio"`
	Timestamp       int64   `json:"timestamp"`
}

// ProcessResponse 抠图响应
type ProcessResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Cached  bool          `json:"cached"`
	Data    *CutoutResult `json:"data,omitempty"`
}

// SaveCutoutRequest 保存抠图结果
type SaveCutoutRequest struct {
	ResultImage string `json:"result_image"`
	MaskImage   string `json:"mask_image"`
}

// SaveCutoutResponse 保存抠图结果的响应
type SaveCutoutResponse struct {
	Success    bool   `json:"success"`
	ResultPath string `json:"result_path"`
	MaskPath   string `json:"mask_path"`
}

// ConvertRequest 黑白转换请求
type ConvertRequest struct {
	Image  string `json:"image"`
	Method string `json:"method"`
}

// ConvertResponse 黑白转换响应
type ConvertResponse struct {
	Success     bool   `json:"success"`
	ResultImage string `json:"result_image"`
	Method      string `json:"method"`
}

// SaveConvertRequest 保存黑白结果
type SaveConvertRequest struct {
	ResultImage string `json:"result_image"`
	Method      string `json:"method"`
}

// SaveConvertResponse 保存黑白结果的响应
type SaveConvertResponse struct {
	Success    bool   `json:"success"`
	ResultPath string `json:"result_path"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}
