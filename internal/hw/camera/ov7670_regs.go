package camera

// OV7670 SCCB address (7-bit) and identification.
const (
	ov7670Addr = 0x21
	ov7670PID  = 0x76
	ov7670VER  = 0x73
)

// Register map (subset used by this driver).
const (
	regGain      = 0x00
	regVref      = 0x03
	regCom1      = 0x04
	regCom2      = 0x09
	regPID       = 0x0A
	regVER       = 0x0B
	regCom3      = 0x0C
	regCom4      = 0x0D
	regCom5      = 0x0E
	regCom6      = 0x0F
	regClkrc     = 0x11
	regCom7      = 0x12
	regCom8      = 0x13
	regCom9      = 0x14
	regCom10     = 0x15
	regHstart    = 0x17
	regHstop     = 0x18
	regVstart    = 0x19
	regVstop     = 0x1A
	regMvfp      = 0x1E
	regAEW       = 0x24
	regAEB       = 0x25
	regVPT       = 0x26
	regHref      = 0x32
	regTslb      = 0x3A
	regCom11     = 0x3B
	regCom13     = 0x3D
	regCom14     = 0x3E
	regCom15     = 0x40
	regCom16     = 0x41
	regRGB444    = 0x8C
	regXSC       = 0x70
	regYSC       = 0x71
	regDcwctr    = 0x72
	regPclkDiv   = 0x73
	regHaecc1    = 0x9F
	regHaecc2    = 0xA0
	regPclkDelay = 0xA2
	regBD50Max   = 0xA5
	regBD60Max   = 0xAB
	regDblv      = 0x6B
)

// Register bits.
const (
	com3DCWEN   = 0x04
	com3ScaleEN = 0x08

	com7Reset = 0x80
	com7RGB   = 0x04

	com8FastAEC = 0x80
	com8AECStep = 0x40
	com8Banding = 0x20
	com8AGC     = 0x04
	com8AWB     = 0x02
	com8AEC     = 0x01

	com11Exp    = 0x02
	com11HZAuto = 0x10
	com11NMFR   = 0xE0

	com15R00FF  = 0xC0
	com15RGB565 = 0x10

	mvfpMirror = 0x20
	mvfpVFlip  = 0x10

	tslbYLast = 0x04

	clkrcScale = 0x3F

	scalingTestBit = 0x80
)

// nightBits maps the frame-rate reduction factor to COM11 bits.
var nightBits = map[int]byte{
	0: 0x00,
	2: 0xA0,
	4: 0xC0,
	8: 0xE0,
}

type regVal struct {
	reg byte
	val byte
}

// defaultRegs brings the sensor from reset to RGB565 VGA with auto
// exposure, gain and white balance enabled.
var defaultRegs = []regVal{
	{regTslb, tslbYLast},
	{regCom7, com7RGB},
	{regRGB444, 0x00},
	{regCom15, com15RGB565 | com15R00FF},
	{regCom1, 0x00},
	{regCom3, 0x00},
	{regCom14, 0x00},
	{regCom8, com8FastAEC | com8AECStep | com8Banding},
	{regGain, 0x00},
	{regCom2, 0x00},
	{regCom4, 0x00},
	{regCom9, 0x20},
	{regBD50Max, 0x05},
	{regBD60Max, 0x07},
	{regAEW, 0x75},
	{regAEB, 0x63},
	{regVPT, 0xA5},
	{regHaecc1, 0x78},
	{regHaecc2, 0x68},
	{regCom5, 0x61},
	{regCom6, 0x4B},
	{regCom10, 0x00},
	{regMvfp, 0x07},
	{regCom13, 0xC0},
	{regCom16, 0x38},
	{regCom11, com11Exp | com11HZAuto},
	{regDblv, 0x0A},
	{regCom8, com8FastAEC | com8AECStep | com8Banding | com8AGC | com8AEC | com8AWB},
}

// windows holds vstart, hstart, edge offset and pclk delay per Size.
var windows = map[Size][4]int{
	SizeDiv1:  {9, 162, 2, 2},
	SizeDiv2:  {10, 174, 0, 2},
	SizeDiv4:  {11, 186, 2, 2},
	SizeDiv8:  {12, 210, 0, 2},
	SizeDiv16: {15, 252, 3, 2},
}

// frameControlRegs computes the scaling and window registers for size.
// xsc and ysc are the current scaling registers; their test pattern bit is kept.
func frameControlRegs(size Size, xsc, ysc byte) []regVal {
	w := windows[size]
	vstart, hstart, edge, pclkDelay := w[0], w[1], w[2], w[3]

	var com3 byte
	if size > SizeDiv1 {
		com3 |= com3DCWEN
	}
	if size == SizeDiv16 {
		com3 |= com3ScaleEN
	}

	var com14 byte
	if size > SizeDiv1 {
		com14 = 0x18 + byte(size)
	}

	dcw := size
	if dcw > SizeDiv8 {
		dcw = SizeDiv8
	}

	pclkDiv := byte(0x08)
	if size > SizeDiv1 {
		pclkDiv = 0xF0 + byte(size)
	}

	scale := byte(0x20)
	if size == SizeDiv16 {
		scale = 0x40
	}

	vstop := vstart + NativeHeight
	hstop := (hstart + NativeWidth) % 784

	return []regVal{
		{regCom3, com3},
		{regCom14, com14},
		{regDcwctr, byte(dcw) * 0x11},
		{regPclkDiv, pclkDiv},
		{regXSC, (xsc & scalingTestBit) | scale},
		{regYSC, (ysc & scalingTestBit) | scale},
		{regHstart, byte(hstart >> 3)},
		{regHstop, byte(hstop >> 3)},
		{regHref, byte(edge<<6) | byte((hstop&7)<<3) | byte(hstart&7)},
		{regVstart, byte(vstart >> 2)},
		{regVstop, byte(vstop >> 2)},
		{regVref, byte((vstop&3)<<2) | byte(vstart&3)},
		{regPclkDelay, byte(pclkDelay)},
	}
}
