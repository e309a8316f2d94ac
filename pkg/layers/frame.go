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
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func init() {
	initUnknownPacketTypes()
	initActualPacketTypes()
}

const (
	// FrameLayerNum identifies the layer
	FrameLayerNum = 2999

	// PacketSize is the size of every binary frame sent by the board
	PacketSize = 33
	// ByteStart is the first byte of each frame
	ByteStart = 0xA0
	// ByteStop is the high nibble of the last byte of each frame, the low nibble is the packet type
	ByteStop = 0xC0

	PositionStartByte         = 0
	PositionSampleNumber      = 1
	PositionChannelDataStart  = 2
	PositionAuxStart          = 26
	PositionTimeSyncAuxStart  = 26
	PositionTimeSyncTimeStart = 28
	PositionStopByte          = 32

	// PayloadSize is the number of bytes between the frame header and the stop byte
	PayloadSize = PositionStopByte - PositionChannelDataStart

	// ChannelsPerFrame is the number of 24 bit channel values in one frame.
	// Daisy boards split 16 channels over two consecutive frames.
	ChannelsPerFrame      = 8
	NumberOfChannelsCyton = 8
	NumberOfChannelsDaisy = 16
)

type PacketType uint8

const (
	PacketTypeStandardAccel PacketType = iota
	PacketTypeStandardRawAux
	PacketTypeUserDefined
	PacketTypeAccelTimeSyncSet
	PacketTypeAccelTimeSynced
	PacketTypeRawAuxTimeSyncSet
	PacketTypeRawAuxTimeSynced
	PacketTypeImpedance
)

// IsStopByte checks the high nibble only, any packet type is accepted
func IsStopByte(b byte) bool {
	return b&0xF0 == ByteStop
}

// StopByte returns the tail byte for a packet type
func StopByte(t PacketType) byte {
	return ByteStop | byte(t&0x0F)
}

// PacketTypeOf extracts the packet type from a tail byte
func PacketTypeOf(b byte) PacketType {
	return PacketType(b & 0x0F)
}

// IsTimeSyncSet returns true for the frames which carry the answer to a sync request
func (t PacketType) IsTimeSyncSet() bool {
	return t == PacketTypeAccelTimeSyncSet || t == PacketTypeRawAuxTimeSyncSet
}

// IsTimeSynced returns true for the frames which carry the board time
func (t PacketType) IsTimeSynced() bool {
	return t == PacketTypeAccelTimeSynced || t == PacketTypeRawAuxTimeSynced
}

// HasAccel returns true when the aux part of the frame carries accelerometer data
func (t PacketType) HasAccel() bool {
	return t == PacketTypeStandardAccel || t == PacketTypeAccelTimeSyncSet || t == PacketTypeAccelTimeSynced
}

// IsSample returns true for every frame that carries channel data
func (t PacketType) IsSample() bool {
	switch t {
	case PacketTypeStandardAccel, PacketTypeStandardRawAux,
		PacketTypeAccelTimeSyncSet, PacketTypeAccelTimeSynced,
		PacketTypeRawAuxTimeSyncSet, PacketTypeRawAuxTimeSynced:
		return true
	}
	return false
}

type errorDecoderForPacketType int

func (e *errorDecoderForPacketType) Decode(data []byte, p gopacket.PacketBuilder) error {
	return e
}

func (e *errorDecoderForPacketType) Error() string {
	return fmt.Sprintf("Unable to decode packet type %d", int(*e))
}

var errorDecodersForPacketType [16]errorDecoderForPacketType
var PacketTypeMetadata [16]layers.EnumMetadata

func initUnknownPacketTypes() {
	for i := 0; i < 16; i++ {
		errorDecodersForPacketType[i] = errorDecoderForPacketType(i)
		PacketTypeMetadata[i] = layers.EnumMetadata{
			DecodeWith: &errorDecodersForPacketType[i],
			Name:       "UnknownPacketType",
		}
	}
}

func initActualPacketTypes() {
	PacketTypeMetadata[PacketTypeStandardAccel] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeSampleLayer), Name: "StandardAccel", LayerType: SampleLayerType}
	PacketTypeMetadata[PacketTypeStandardRawAux] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeSampleLayer), Name: "StandardRawAux", LayerType: SampleLayerType}
	PacketTypeMetadata[PacketTypeUserDefined] = layers.EnumMetadata{DecodeWith: gopacket.LayerTypePayload, Name: "UserDefined", LayerType: gopacket.LayerTypePayload}
	PacketTypeMetadata[PacketTypeAccelTimeSyncSet] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeTimeSyncLayer), Name: "AccelTimeSyncSet", LayerType: TimeSyncLayerType}
	PacketTypeMetadata[PacketTypeAccelTimeSynced] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeTimeSyncLayer), Name: "AccelTimeSynced", LayerType: TimeSyncLayerType}
	PacketTypeMetadata[PacketTypeRawAuxTimeSyncSet] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeTimeSyncLayer), Name: "RawAuxTimeSyncSet", LayerType: TimeSyncLayerType}
	PacketTypeMetadata[PacketTypeRawAuxTimeSynced] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeTimeSyncLayer), Name: "RawAuxTimeSynced", LayerType: TimeSyncLayerType}
	PacketTypeMetadata[PacketTypeImpedance] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeImpedanceLayer), Name: "Impedance", LayerType: ImpedanceLayerType}
}

// LayerType returns PacketTypeMetadata.LayerType
func (t PacketType) LayerType() gopacket.LayerType {
	return PacketTypeMetadata[t&0x0F].LayerType
}

// Decode calls PacketTypeMetadata.DecodeWith's decoder
func (t PacketType) Decode(data []byte, p gopacket.PacketBuilder) error {
	return PacketTypeMetadata[t&0x0F].DecodeWith.Decode(data, p)
}

// String returns PacketTypeMetadata.Name
func (t PacketType) String() string {
	return PacketTypeMetadata[t&0x0F].Name
}

// FrameLayer is the fixed size envelope of every binary packet.
// Start byte and sample number are the header, the stop byte is the tail.
type FrameLayer struct {
	layers.BaseLayer
	SampleNumber uint8
	Type         PacketType
}

var FrameLayerType = gopacket.RegisterLayerType(FrameLayerNum,
	gopacket.LayerTypeMetadata{Name: "FrameLayerType", Decoder: gopacket.DecodeFunc(decodeFrameLayer)})

func (f *FrameLayer) LayerType() gopacket.LayerType {
	return FrameLayerType
}

// SerializeTo writes the header in front of the payload and the stop byte after it
func (f *FrameLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(b.Bytes()) != PayloadSize {
		return ErrInvalidByteLength{Length: len(b.Bytes()) + 3}
	}
	headerBytes, err := b.PrependBytes(PositionChannelDataStart)
	if err != nil {
		return err
	}
	headerBytes[PositionStartByte] = ByteStart
	headerBytes[PositionSampleNumber] = f.SampleNumber

	tailBytes, err := b.AppendBytes(1)
	if err != nil {
		return err
	}
	tailBytes[0] = StopByte(f.Type)
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as a board frame
func (f *FrameLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < PacketSize {
		df.SetTruncated()
		return ErrInvalidByteLength{Length: len(data)}
	}
	if len(data) > PacketSize {
		return ErrInvalidByteLength{Length: len(data)}
	}
	if data[PositionStartByte] != ByteStart {
		return ErrInvalidStartByte{Value: data[PositionStartByte]}
	}
	if !IsStopByte(data[PositionStopByte]) {
		return ErrInvalidStopByte{Value: data[PositionStopByte]}
	}

	f.BaseLayer = layers.BaseLayer{
		Contents: data[:PositionChannelDataStart],
		Payload:  data[PositionChannelDataStart:PositionStopByte],
	}
	f.SampleNumber = data[PositionSampleNumber]
	f.Type = PacketTypeOf(data[PositionStopByte])
	return nil
}

func (f *FrameLayer) NextLayerType() gopacket.LayerType {
	return f.Type.LayerType()
}

func decodeFrameLayer(data []byte, p gopacket.PacketBuilder) error {
	f := &FrameLayer{}
	err := f.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(f)
	return p.NextDecoder(f.Type)
}

// NewFrame serializes a frame envelope around a payload layer
func NewFrame(sampleNumber uint8, packetType PacketType, payload gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	frame := &FrameLayer{SampleNumber: sampleNumber, Type: packetType}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, frame, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFrame decodes a raw frame without copying it
func DecodeFrame(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, FrameLayerType, gopacket.DecodeOptions{NoCopy: true, Lazy: false})
}
