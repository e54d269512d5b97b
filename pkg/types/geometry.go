package types

import "github.com/go-gl/mathgl/mgl64"

// Point 空间坐标
type Point = mgl64.Vec3

// DistanceSq 返回两点距离的平方
func DistanceSq(a, b Point) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

// WithinRadius 判断 p 是否在以 center 为球心、radius 为半径的闭球内
//
// 边界上的点（距离恰好等于 radius）视为在球内。
func WithinRadius(p, center Point, radius float64) bool {
	if radius < 0 {
		return false
	}
	return DistanceSq(p, center) <= radius*radius
}
