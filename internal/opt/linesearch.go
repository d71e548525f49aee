package opt

import "math"

const (
	goldenRatio = 1.618033988749895
	cGold       = 0.3819660112501051 // 2 - golden ratio
	growLimit   = 110.0
	tiny        = 1e-21
)

// bracket expands [a, b] downhill until it returns a < b < c (or c < b < a)
// with f(b) below f(a) and f(c)
func bracket(f func(float64) float64, a, b float64, maxIter int) (xa, xb, xc, fa, fb, fc float64) {
	fa, fb = f(a), f(b)
	if fb > fa {
		a, b = b, a
		fa, fb = fb, fa
	}
	c := b + goldenRatio*(b-a)
	fc = f(c)

	for iter := 0; fb > fc && iter < maxIter; iter++ {
		r := (b - a) * (fb - fc)
		q := (b - c) * (fb - fa)
		denom := 2 * math.Max(math.Abs(q-r), tiny)
		if q-r < 0 {
			denom = -denom
		}
		w := b - ((b-c)*q-(b-a)*r)/denom
		wlim := b + growLimit*(c-b)

		var fw float64
		switch {
		case (w-c)*(b-w) > 0:
			fw = f(w)
			if fw < fc {
				return b, w, c, fb, fw, fc
			} else if fw > fb {
				return a, b, w, fa, fb, fw
			}
			w = c + goldenRatio*(c-b)
			fw = f(w)
		case (w-wlim)*(wlim-c) >= 0:
			w = wlim
			fw = f(w)
		case (w-wlim)*(c-w) > 0:
			fw = f(w)
			if fw < fc {
				b, c, w = c, w, w+goldenRatio*(w-c)
				fb, fc = fc, fw
				fw = f(w)
			}
		default:
			w = c + goldenRatio*(c-b)
			fw = f(w)
		}
		a, b, c = b, c, w
		fa, fb, fc = fb, fc, fw
	}
	return a, b, c, fa, fb, fc
}

// brent finds a minimum of f inside the bracket (a, b, c) to relative
// tolerance tol using parabolic interpolation with golden-section fallback
func brent(f func(float64) float64, a, b, c, fb, tol float64, maxIter int) (float64, float64) {
	lo, hi := math.Min(a, c), math.Max(a, c)
	x, w, v := b, b, b
	fx, fw, fv := fb, fb, fb
	var d, e float64

	for iter := 0; iter < maxIter; iter++ {
		mid := 0.5 * (lo + hi)
		tol1 := tol*math.Abs(x) + 1e-11
		tol2 := 2 * tol1
		if math.Abs(x-mid) <= tol2-0.5*(hi-lo) {
			break
		}

		useGolden := true
		if math.Abs(e) > tol1 {
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etemp := e
			e = d
			if math.Abs(p) < math.Abs(0.5*q*etemp) && p > q*(lo-x) && p < q*(hi-x) {
				d = p / q
				u := x + d
				if u-lo < tol2 || hi-u < tol2 {
					d = math.Copysign(tol1, mid-x)
				}
				useGolden = false
			}
		}
		if useGolden {
			if x >= mid {
				e = lo - x
			} else {
				e = hi - x
			}
			d = cGold * e
		}

		u := x + d
		if math.Abs(d) < tol1 {
			u = x + math.Copysign(tol1, d)
		}
		fu := f(u)

		if fu <= fx {
			if u >= x {
				lo = x
			} else {
				hi = x
			}
			v, w, x = w, x, u
			fv, fw, fx = fw, fx, fu
		} else {
			if u < x {
				lo = u
			} else {
				hi = u
			}
			if fu <= fw || w == x {
				v, w = w, u
				fv, fw = fw, fu
			} else if fu <= fv || v == x || v == w {
				v = u
				fv = fu
			}
		}
	}
	return x, fx
}
