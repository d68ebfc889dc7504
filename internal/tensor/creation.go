package tensor

// Zeros allocates a zero-filled tensor. The shape must be valid; node shapes
// are validated before they reach here, so a bad shape panics.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Full allocates a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	if value != 0 {
		data := t.Data()
		for i := range data {
			data[i] = value
		}
	}
	return t
}
