/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package layers

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	SampleLayerNum    = 3000
	TimeSyncLayerNum  = 3001
	ImpedanceLayerNum = 3002

	// Aux bytes carried by standard frames: three int16 accel axes or six raw bytes
	AuxSize = 6
	// Aux bytes carried by time sync frames: one accel axis or two raw bytes
	TimeSyncAuxSize = 2

	AccelAxisX = 7
	AccelAxisY = 8
	AccelAxisZ = 9
)

var SampleLayerType = gopacket.RegisterLayerType(SampleLayerNum,
	gopacket.LayerTypeMetadata{Name: "SampleLayerType", Decoder: gopacket.DecodeFunc(decodeSampleLayer)})

var TimeSyncLayerType = gopacket.RegisterLayerType(TimeSyncLayerNum,
	gopacket.LayerTypeMetadata{Name: "TimeSyncLayerType", Decoder: gopacket.DecodeFunc(decodeTimeSyncLayer)})

var ImpedanceLayerType = gopacket.RegisterLayerType(ImpedanceLayerNum,
	gopacket.LayerTypeMetadata{Name: "ImpedanceLayerType", Decoder: gopacket.DecodeFunc(decodeImpedanceLayer)})

// Int24ToInt32 converts a 24 bit big endian two's complement value
func Int24ToInt32(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if v&0x800000 != 0 {
		v |= ^0xFFFFFF
	}
	return v
}

// PutInt24 writes the lower 24 bits of v as big endian
func PutInt24(b []byte, v int32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func decodeChannels(data []byte, channels *[ChannelsPerFrame]int32) {
	for i := 0; i < ChannelsPerFrame; i++ {
		channels[i] = Int24ToInt32(data[i*3 : i*3+3])
	}
}

func serializeChannels(buf []byte, channels *[ChannelsPerFrame]int32) {
	for i := 0; i < ChannelsPerFrame; i++ {
		PutInt24(buf[i*3:i*3+3], channels[i])
	}
}

// SampleLayer is the payload of standard frames.
// Aux holds either three big endian int16 accel axes or six raw bytes
// depending on the packet type of the frame.
type SampleLayer struct {
	layers.BaseLayer
	Channels [ChannelsPerFrame]int32
	Aux      [AuxSize]byte
}

func (s *SampleLayer) LayerType() gopacket.LayerType {
	return SampleLayerType
}

// Accel interprets the aux bytes as accelerometer counts
func (s *SampleLayer) Accel() [3]int16 {
	return [3]int16{
		int16(binary.BigEndian.Uint16(s.Aux[0:2])),
		int16(binary.BigEndian.Uint16(s.Aux[2:4])),
		int16(binary.BigEndian.Uint16(s.Aux[4:6])),
	}
}

// SetAccel writes accelerometer counts into the aux bytes
func (s *SampleLayer) SetAccel(accel [3]int16) {
	for i, v := range accel {
		binary.BigEndian.PutUint16(s.Aux[i*2:i*2+2], uint16(v))
	}
}

func (s *SampleLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(PayloadSize)
	if err != nil {
		return err
	}
	serializeChannels(bytes, &s.Channels)
	copy(bytes[PositionAuxStart-PositionChannelDataStart:], s.Aux[:])
	return nil
}

func (s *SampleLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < PayloadSize {
		df.SetTruncated()
		return ErrInvalidByteLength{Length: len(data)}
	}
	s.BaseLayer = layers.BaseLayer{Contents: data[:PayloadSize]}
	decodeChannels(data, &s.Channels)
	copy(s.Aux[:], data[PositionAuxStart-PositionChannelDataStart:PayloadSize])
	return nil
}

func (s *SampleLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func decodeSampleLayer(data []byte, p gopacket.PacketBuilder) error {
	s := &SampleLayer{}
	if err := s.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(s)
	return nil
}

// TimeSyncLayer is the payload of the frames sent after a sync request.
// The last four bytes carry the board time in milliseconds.
type TimeSyncLayer struct {
	layers.BaseLayer
	Channels  [ChannelsPerFrame]int32
	Aux       [TimeSyncAuxSize]byte
	BoardTime int32
}

func (s *TimeSyncLayer) LayerType() gopacket.LayerType {
	return TimeSyncLayerType
}

// AccelAxis interprets the two aux bytes as a single accel axis
func (s *TimeSyncLayer) AccelAxis() int16 {
	return int16(binary.BigEndian.Uint16(s.Aux[:]))
}

func (s *TimeSyncLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(PayloadSize)
	if err != nil {
		return err
	}
	serializeChannels(bytes, &s.Channels)
	copy(bytes[PositionTimeSyncAuxStart-PositionChannelDataStart:], s.Aux[:])
	binary.BigEndian.PutUint32(bytes[PositionTimeSyncTimeStart-PositionChannelDataStart:], uint32(s.BoardTime))
	return nil
}

func (s *TimeSyncLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < PayloadSize {
		df.SetTruncated()
		return ErrInvalidByteLength{Length: len(data)}
	}
	s.BaseLayer = layers.BaseLayer{Contents: data[:PayloadSize]}
	decodeChannels(data, &s.Channels)
	copy(s.Aux[:], data[PositionTimeSyncAuxStart-PositionChannelDataStart:])
	s.BoardTime = int32(binary.BigEndian.Uint32(data[PositionTimeSyncTimeStart-PositionChannelDataStart:]))
	return nil
}

func (s *TimeSyncLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func decodeTimeSyncLayer(data []byte, p gopacket.PacketBuilder) error {
	s := &TimeSyncLayer{}
	if err := s.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(s)
	return nil
}

// ImpedanceLayer is the payload of impedance frames. The channel number
// travels in the sample number position of the frame header.
type ImpedanceLayer struct {
	layers.BaseLayer
	Ohms uint32
}

func (s *ImpedanceLayer) LayerType() gopacket.LayerType {
	return ImpedanceLayerType
}

func (s *ImpedanceLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(PayloadSize)
	if err != nil {
		return err
	}
	for i := range bytes {
		bytes[i] = 0
	}
	binary.BigEndian.PutUint32(bytes[0:4], s.Ohms)
	return nil
}

func (s *ImpedanceLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 4 {
		df.SetTruncated()
		return ErrInvalidByteLength{Length: len(data)}
	}
	s.BaseLayer = layers.BaseLayer{Contents: data}
	s.Ohms = binary.BigEndian.Uint32(data[0:4])
	return nil
}

func (s *ImpedanceLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func decodeImpedanceLayer(data []byte, p gopacket.PacketBuilder) error {
	s := &ImpedanceLayer{}
	if err := s.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(s)
	return nil
}
