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

package cyton

import (
	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

// route classifies a frame by its packet type and returns the resulting notifications
func (c *Conn) route(frame []byte, arrived int64) []Notification {
	out := []Notification{{Type: EventRawFrame, Raw: frame}}

	packet := layers.DecodeFrame(frame)
	header, ok := packet.Layer(layers.FrameLayerType).(*layers.FrameLayer)
	if !ok {
		return out
	}
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		log.Debug("Ignoring packet type %d: %s", header.Type, errLayer.Error())
		return out
	}

	switch {
	case header.Type.IsTimeSyncSet():
		obj := c.sync.Complete(frame, arrived)
		if c.mode == ModeTimeSyncSent {
			c.mode = ModeNormal
		}
		out = append(out, Notification{Type: EventSynced, Sync: obj})
		out = append(out, c.routeSample(header, packet, arrived)...)
	case header.Type.IsSample():
		out = append(out, c.routeSample(header, packet, arrived)...)
	case header.Type == layers.PacketTypeImpedance:
		if imp, ok := packet.Layer(layers.ImpedanceLayerType).(*layers.ImpedanceLayer); ok {
			out = append(out, Notification{
				Type:      EventImpedance,
				Impedance: &Impedance{Channel: int(header.SampleNumber), Ohms: imp.Ohms},
			})
		}
	}
	return out
}

func (c *Conn) routeSample(header *layers.FrameLayer, packet gopacket.Packet, arrived int64) []Notification {
	var out []Notification
	if missing := c.seq.Check(int(header.SampleNumber)); missing != nil {
		out = append(out, Notification{Type: EventDroppedPacket, Dropped: missing})
	}
	s := c.decodeSample(header, packet, arrived)
	if s == nil {
		return out
	}
	if c.info.NumberOfChannels == layers.NumberOfChannelsDaisy {
		s = c.daisy.Add(s)
		c.info.MissedPackets = c.daisy.Missed()
		if s == nil {
			return out
		}
	}
	return append(out, Notification{Type: EventSample, Sample: s})
}
