package service

// ToBinaryMask 把 trimap 归约为二值掩码
// FGD 与 PR_FGD 记为前景，其余（包括非法取值）记为背景
func ToBinaryMask(t *Trimap) *BinaryMask {
	mask := &BinaryMask{
		Width:  t.Width,
		Height: t.Height,
		Pix:    make([]uint8, len(t.Cells)),
	}
	for i, c := range t.Cells {
		if c == DefiniteForeground || c == ProbableForeground {
			mask.Pix[i] = MaskForeground
		}
	}
	return mask
}

// TrimapStats 各类标签的像素数，用于日志
type TrimapStats struct {
	DefiniteBackground int
	ProbableBackground int
	ProbableForeground int
	DefiniteForeground int
}

// CountTrimap 统计 trimap 中各类标签
func CountTrimap(t *Trimap) TrimapStats {
	var s TrimapStats
	for _, c := range t.Cells {
		switch c {
		case DefiniteForeground:
			s.DefiniteForeground++
		case ProbableForeground:
			s.ProbableForeground++
		case ProbableBackground:
			s.ProbableBackground++
		default:
			s.DefiniteBackground++
		}
	}
	return s
}
