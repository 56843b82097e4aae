package audio

// Resample converts samples from inRate to outRate using linear
// interpolation. Used at the STT/TTS/device boundaries where the capture or
// playback device rate differs from the rate a provider expects (spec
// §4.7 "resample as needed"). Returns the input unchanged when the rates
// already match or either rate is non-positive.
func Resample(samples []int16, inRate, outRate int) []int16 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(inRate) / float64(outRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen <= 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// ResampleFrame resamples a Frame to a new sample rate.
func ResampleFrame(f Frame, outRate int) Frame {
	return Frame{Samples: Resample(f.Samples, f.SampleRate, outRate), SampleRate: outRate}
}
