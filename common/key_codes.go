package common

// Key codes delivered to key-down callbacks. Values match GLFW, which uses ASCII for printable keys.
const (
	KeyR     = 82
	KeyMinus = 45
	KeyEqual = 61 // shares the key with '+'

	KeyEsc   = 256
	KeyRight = 262
	KeyLeft  = 263
	KeyDown  = 264
	KeyUp    = 265

	KeyKPSubtract = 333
	KeyKPAdd      = 334
)
