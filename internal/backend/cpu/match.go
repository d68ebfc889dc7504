package cpu

import (
	"fmt"

	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// matchDims adds the flat offsets used by the match kernels.
type matchDims struct {
	tensor.MatchDims
}

// rep returns the offset of position i of row b in a [batch,1,docLen,feat] input.
func (d matchDims) rep(b, i int) int {
	return (b*d.DocLen + i) * d.Feat
}

// out returns the offset of (b,h,i,j) in the [batch,hidden,docLen,docLen] output.
func (d matchDims) out(b, h, i, j int) int {
	return ((b*d.Hidden+h)*d.DocLen+i)*d.DocLen + j
}

func checkMatchShapes(op string, a, bb, w, out *tensor.RawTensor, win tensor.MatchWindow) matchDims {
	d, err := tensor.CheckMatch(a, bb, w, out, win)
	if err != nil {
		panic(fmt.Sprintf("match %s: %v", op, err))
	}
	return matchDims{d}
}

// MatchWeightedDotForward computes the per-channel bilinear match scores.
// Work is split over (batch, i) rows; each row writes only its own slice of
// the output.
func (cpu *CPUBackend) MatchWeightedDotForward(a, bb, w *tensor.RawTensor, win tensor.MatchWindow, out *tensor.RawTensor) {
	d := checkMatchShapes("forward", a, bb, w, out, win)
	x0, x1, wd, top := a.AsFloat32(), bb.AsFloat32(), w.AsFloat32(), out.AsFloat32()
	clear(top)

	parallel.ForGrid(d.Batch, d.DocLen, func(b, i int) {
		if i >= win.Len0[b] || i%win.Interval != 0 {
			return
		}
		rep0 := x0[d.rep(b, i) : d.rep(b, i)+d.Feat]
		for j := 0; j < win.Len1[b]; j += win.Interval {
			rep1 := x1[d.rep(b, j) : d.rep(b, j)+d.Feat]
			for h := 0; h < d.Hidden; h++ {
				wh := wd[h*d.Feat : (h+1)*d.Feat]
				var s float32
				for f := range rep0 {
					s += rep0[f] * rep1[f] * wh[f]
				}
				top[d.out(b, h, i, j)] = s
			}
		}
	}, cpu.par.WithMinChunk(1))
}

// MatchWeightedDotBackward accumulates the match gradients in three passes,
// each partitioned by its destination: (b,i) rows of da, (b,j) rows of db and
// h rows of dw. All passes visit the window the forward kernel visited.
func (cpu *CPUBackend) MatchWeightedDotBackward(
	a, bb, w, dOut *tensor.RawTensor,
	win tensor.MatchWindow,
	da, db, dw *tensor.RawTensor,
) {
	d := checkMatchShapes("backward", a, bb, w, dOut, win)
	if !dw.Shape().Equal(w.Shape()) {
		panic(fmt.Sprintf("match backward: weight grad shape %v, want %v", dw.Shape(), w.Shape()))
	}
	x0, x1, wd, g := a.AsFloat32(), bb.AsFloat32(), w.AsFloat32(), dOut.AsFloat32()
	cfg := cpu.par.WithMinChunk(1)

	if da != nil {
		checkSameShape("match backward", a, da)
		gx0 := da.AsFloat32()
		parallel.ForGrid(d.Batch, d.DocLen, func(b, i int) {
			if i >= win.Len0[b] || i%win.Interval != 0 {
				return
			}
			acc := gx0[d.rep(b, i) : d.rep(b, i)+d.Feat]
			for j := 0; j < win.Len1[b]; j += win.Interval {
				rep1 := x1[d.rep(b, j) : d.rep(b, j)+d.Feat]
				for h := 0; h < d.Hidden; h++ {
					gv := g[d.out(b, h, i, j)]
					wh := wd[h*d.Feat : (h+1)*d.Feat]
					for f := range acc {
						acc[f] += gv * rep1[f] * wh[f]
					}
				}
			}
		}, cfg)
	}

	if db != nil {
		checkSameShape("match backward", bb, db)
		gx1 := db.AsFloat32()
		parallel.ForGrid(d.Batch, d.DocLen, func(b, j int) {
			if j >= win.Len1[b] || j%win.Interval != 0 {
				return
			}
			acc := gx1[d.rep(b, j) : d.rep(b, j)+d.Feat]
			for i := 0; i < win.Len0[b]; i += win.Interval {
				rep0 := x0[d.rep(b, i) : d.rep(b, i)+d.Feat]
				for h := 0; h < d.Hidden; h++ {
					gv := g[d.out(b, h, i, j)]
					wh := wd[h*d.Feat : (h+1)*d.Feat]
					for f := range acc {
						acc[f] += gv * rep0[f] * wh[f]
					}
				}
			}
		}, cfg)
	}

	gw := dw.AsFloat32()
	parallel.For(d.Hidden, func(h int) {
		acc := gw[h*d.Feat : (h+1)*d.Feat]
		for b := 0; b < d.Batch; b++ {
			for i := 0; i < win.Len0[b]; i += win.Interval {
				rep0 := x0[d.rep(b, i) : d.rep(b, i)+d.Feat]
				for j := 0; j < win.Len1[b]; j += win.Interval {
					rep1 := x1[d.rep(b, j) : d.rep(b, j)+d.Feat]
					gv := g[d.out(b, h, i, j)]
					for f := range acc {
						acc[f] += gv * rep0[f] * rep1[f]
					}
				}
			}
		}
	}, cfg)
}

func checkSameShape(op string, x, dx *tensor.RawTensor) {
	if !x.Shape().Equal(dx.Shape()) {
		panic(fmt.Sprintf("%s: gradient shape %v does not match %v", op, dx.Shape(), x.Shape()))
	}
}
