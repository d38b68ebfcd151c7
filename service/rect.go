package service

// ValidateRect 校验种子矩形是否完整落在 width x height 的图像内
//
// 不做任何裁剪：越界直接返回 RectError，通过时原样返回。
func ValidateRect(width, height int, r Rectangle) (Rectangle, error) {
	switch {
	case r.X < 0:
		return Rectangle{}, rectError("x", r, width, height)
	case r.Y < 0:
		return Rectangle{}, rectError("y", r, width, height)
	case r.Width <= 0:
		return Rectangle{}, rectError("width", r, width, height)
	case r.Height <= 0:
		return Rectangle{}, rectError("height", r, width, height)
	case r.Width > width-r.X:
		return Rectangle{}, rectError("x+width", r, width, height)
	case r.Height > height-r.Y:
		return Rectangle{}, rectError("y+height", r, width, height)
	}
	return r, nil
}
