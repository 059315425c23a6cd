package pair

// CoprimeStep reduces step modulo total and returns the nearest value in
// [1, total) that is coprime with total, preferring the larger candidate on a
// tie. A total of 1 yields 0, which is the only stride that space has.
func CoprimeStep(step, total uint64) uint64 {
	if total <= 1 {
		return 0
	}
	s := step % total
	// 1 is always coprime, so the search ends by distance total-1.
	for d := uint64(0); d < total; d++ {
		if up := addMod(s, d, total); up != 0 && gcd(up, total) == 1 {
			return up
		}
		if down := subMod(s, d, total); down != 0 && gcd(down, total) == 1 {
			return down
		}
	}
	return 1
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// floorMod returns seed modulo m in [0, m), for negative seeds too.
func floorMod(seed int64, m uint64) uint64 {
	if seed >= 0 {
		return uint64(seed) % m
	}
	// -(seed+1) avoids overflowing on math.MinInt64.
	r := uint64(-(seed + 1)) % m
	return m - 1 - r
}

// addMod returns (a+b) mod m for a, b < m without overflowing.
func addMod(a, b, m uint64) uint64 {
	if a >= m-b {
		return a - (m - b)
	}
	return a + b
}

// subMod returns (a-b) mod m for a, b < m.
func subMod(a, b, m uint64) uint64 {
	if a >= b {
		return a - b
	}
	return m - (b - a)
}
