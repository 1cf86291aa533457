package portable

// kageSource is the single fragment shader this backend compiles once at
// construction time and dispatches for every affine or CDL color op.
// Mode selects between the two: 0 is a 4x4 row-vector affine transform
// (Matrix, Exposure and Contrast all reduce to this via
// transform.AsAffine), 1 is ASC CDL v1.2 slope/offset/power/saturation.
const kageSource = `
package main

var Mode float
var Row0 vec4
var Row1 vec4
var Row2 vec4
var Row3 vec4
var Slope vec3
var Offset vec3
var Power vec3
var Sat float

func applyAffine(rgb vec3) vec3 {
	x := vec4(rgb, 1.0)
	r := x.x*Row0.x + x.y*Row1.x + x.z*Row2.x + x.w*Row3.x
	g := x.x*Row0.y + x.y*Row1.y + x.z*Row2.y + x.w*Row3.y
	b := x.x*Row0.z + x.y*Row1.z + x.z*Row2.z + x.w*Row3.z
	return vec3(r, g, b)
}

func applyCdl(rgb vec3) vec3 {
	v := rgb*Slope + Offset
	v = max(v, vec3(0.0))
	v = vec3(pow(v.x, Power.x), pow(v.y, Power.y), pow(v.z, Power.z))
	luma := dot(v, vec3(0.2126, 0.7152, 0.0722))
	return luma + Sat*(v-vec3(luma))
}

func Fragment(position vec4, texCoord vec2, color vec4) vec4 {
	c := imageSrc0At(texCoord)
	rgb := c.rgb
	if Mode < 0.5 {
		rgb = applyAffine(rgb)
	} else {
		rgb = applyCdl(rgb)
	}
	return vec4(clamp(rgb, vec3(0.0), vec3(1.0)), c.a)
}
`
