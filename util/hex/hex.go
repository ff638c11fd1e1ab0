/*
 * ut - Hex digit helpers for channel id framing.
 *
 * Copyright 2024, Richard Cornwell
 * Copyright 2026, bytemine GmbH
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package hex converts channel ids to and from the two upper-case hex
// digits carried in the framing prefix. Only upper case is ever produced;
// only upper case is ever accepted.
package hex

const hexMap = "0123456789ABCDEF"

// FormatByte writes the two upper-case hex digits of b to str.
func FormatByte(str []byte, b byte) {
	str[0] = hexMap[(b>>4)&0xf]
	str[1] = hexMap[b&0xf]
}

// IsDigit reports whether c is an upper-case hex digit.
func IsDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

// DigitValue returns the value of an upper-case hex digit. Caller must
// have checked IsDigit first.
func DigitValue(c byte) byte {
	if c <= '9' {
		return c - '0'
	}
	return c - 'A' + 10
}

// DecodeByte decodes two upper-case hex digits into a byte. ok is false
// if either digit is not a valid upper-case hex digit.
func DecodeByte(hi, lo byte) (b byte, ok bool) {
	if !IsDigit(hi) || !IsDigit(lo) {
		return 0, false
	}
	return (DigitValue(hi) << 4) | DigitValue(lo), true
}
