package service

import (
	"image"
	"strings"
)

// Method 亮度折算公式
type Method int

const (
	MethodAverage Method = iota
	MethodLuminosity
	MethodLightness
	MethodGreenChannel
	MethodLuma
	MethodCustom
	methodCount
)

// 所有公式输入顺序为 b, g, r
type lumaFunc func(b, g, r uint8) uint8

var methodTable = [methodCount]struct {
	name string
	fn   lumaFunc
}{
	MethodAverage:      {"average", average},
	MethodLuminosity:   {"luminosity", Luminosity},
	MethodLightness:    {"lightness", lightness},
	MethodGreenChannel: {"green-channel", greenChannel},
	MethodLuma:         {"luma", luma},
	MethodCustom:       {"custom", custom},
}

func (m Method) String() string {
	if m < 0 || m >= methodCount {
		return "unknown"
	}
	return methodTable[m].name
}

// Methods 返回全部公式，按枚举顺序
func Methods() []Method {
	out := make([]Method, 0, methodCount)
	for m := Method(0); m < methodCount; m++ {
		out = append(out, m)
	}
	return out
}

// ParseMethod 解析公式名称，兼容旧前端的下划线写法
func ParseMethod(name string) (Method, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for m := Method(0); m < methodCount; m++ {
		if methodTable[m].name == norm {
			return m, nil
		}
	}
	return 0, unknownMethodError("convert", name)
}

// Luminosity BT.601 加权并四舍五入，14 位定点，与 OpenCV BGR2GRAY 结果一致
func Luminosity(b, g, r uint8) uint8 {
	return uint8((4899*uint32(r) + 9617*uint32(g) + 1868*uint32(b) + 1<<13) >> 14)
}

func average(b, g, r uint8) uint8 {
	return uint8((uint32(b) + uint32(g) + uint32(r)) / 3)
}

func lightness(b, g, r uint8) uint8 {
	hi := max(b, g, r)
	lo := min(b, g, r)
	return uint8((uint16(hi) + uint16(lo)) / 2)
}

func greenChannel(_, g, _ uint8) uint8 {
	return g
}

// luma 与 custom 沿用截断取整
func luma(b, g, r uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

func custom(b, g, r uint8) uint8 {
	return uint8((uint32(r) + 2*uint32(g) + uint32(b)) / 4)
}

// ToGray 用指定公式把 BGR 缓冲折算为单通道
func ToGray(img *PixelBuffer, m Method) *image.Gray {
	fn := methodTable[m].fn
	gray := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := img.Pix[y*img.Stride():]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < img.Width; x++ {
			dst[x] = fn(src[3*x], src[3*x+1], src[3*x+2])
		}
	}
	return gray
}
