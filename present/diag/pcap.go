package diag

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

// Frames are written as synthetic ipv4/udp packets with the frame as the payload.
// The local participant is always `PcapLocalIp`. A peer address is derived from the peer id.

const PcapPort = 7480
const PcapSnapLength = 65535
const PcapMaxPayloadByteCount = 65535 - 20 - 8

var PcapLocalIp = net.IPv4(10, 0, 0, 1).To4()

func pcapPeerIp(peerId model.Id) net.IP {
	// avoid the local address
	return net.IPv4(10, peerId[13]|0x80, peerId[14], peerId[15]).To4()
}

// writes one pcap packet per frame. Implements `present.MessageTracer`.
type PcapTrace struct {
	stateLock sync.Mutex
	writer    *pcapgo.Writer
	// the tracer sees each tree of a frame with the same frame bytes
	lastFrame []byte
	err       error
}

func NewPcapTrace(w io.Writer) (*PcapTrace, error) {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(PcapSnapLength, layers.LinkTypeRaw); err != nil {
		return nil, err
	}
	return &PcapTrace{
		writer: writer,
	}, nil
}

func sameFrame(a []byte, b []byte) bool {
	return 0 < len(a) && len(a) == len(b) && &a[0] == &b[0]
}

func (self *PcapTrace) writeFrame(t time.Time, srcIp net.IP, dstIp net.IP, frameBytes []byte) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.err != nil {
		return
	}
	if sameFrame(self.lastFrame, frameBytes) {
		return
	}
	self.lastFrame = frameBytes

	payload := frameBytes
	if PcapMaxPayloadByteCount < len(payload) {
		payload = payload[:PcapMaxPayloadByteCount]
	}

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIp,
		DstIP:    dstIp,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(PcapPort),
		DstPort: layers.UDPPort(PcapPort),
	}
	udp.SetNetworkLayerForChecksum(ip)

	buffer := gopacket.NewSerializeBuffer()
	options := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	err := gopacket.SerializeLayers(buffer, options, ip, udp, gopacket.Payload(payload))
	if err != nil {
		glog.Infof("[pcap]serialize error = %s\n", err)
		return
	}
	packet := buffer.Bytes()
	captureInfo := gopacket.CaptureInfo{
		Timestamp:     t,
		CaptureLength: len(packet),
		Length:        len(packet) + len(frameBytes) - len(payload),
	}
	if err := self.writer.WritePacket(captureInfo, packet); err != nil {
		glog.Infof("[pcap]write error = %s\n", err)
		self.err = err
	}
}

// present.MessageTracer
func (self *PcapTrace) MessageSent(summary *present.MessageSummary, frameBytes []byte) {
	self.writeFrame(summary.Time, PcapLocalIp, pcapPeerIp(summary.PeerId), frameBytes)
}

// present.MessageTracer
func (self *PcapTrace) MessageReceived(summary *present.MessageSummary, frameBytes []byte) {
	self.writeFrame(summary.Time, pcapPeerIp(summary.PeerId), PcapLocalIp, frameBytes)
}

type PcapRecord struct {
	Time      time.Time
	Direction present.Direction
	PeerIp    net.IP
	// truncated frames cannot be decoded
	Truncated  bool
	FrameBytes []byte
}

type PcapReader struct {
	reader *pcapgo.Reader
}

func NewPcapReader(r io.Reader) (*PcapReader, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &PcapReader{
		reader: reader,
	}, nil
}

// returns `io.EOF` at the end of the trace
func (self *PcapReader) Next() (*PcapRecord, error) {
	packet, captureInfo, err := self.reader.ReadPacketData()
	if err != nil {
		return nil, err
	}

	ip := &layers.IPv4{}
	if err := ip.DecodeFromBytes(packet, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	if ip.Protocol != layers.IPProtocolUDP {
		return nil, fmt.Errorf("Not a frame packet (%s).", ip.Protocol)
	}
	udp := &layers.UDP{}
	if err := udp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}

	record := &PcapRecord{
		Time:       captureInfo.Timestamp,
		Truncated:  captureInfo.CaptureLength < captureInfo.Length,
		FrameBytes: udp.Payload,
	}
	if ip.SrcIP.Equal(PcapLocalIp) {
		record.Direction = present.DirectionSent
		record.PeerIp = ip.DstIP
	} else {
		record.Direction = present.DirectionReceived
		record.PeerIp = ip.SrcIP
	}
	return record, nil
}

type PcapSummary struct {
	SentFrameCount     int
	ReceivedFrameCount int
	TruncatedCount     int
	TreeCount          int
	// trees that failed to decode
	BadTreeCount int
	// leaf tag -> count
	LeafTagCounts map[string]int
}

func SummarizePcap(r io.Reader) (*PcapSummary, error) {
	reader, err := NewPcapReader(r)
	if err != nil {
		return nil, err
	}

	summary := &PcapSummary{
		LeafTagCounts: map[string]int{},
	}
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return summary, err
		}
		switch record.Direction {
		case present.DirectionSent:
			summary.SentFrameCount += 1
		default:
			summary.ReceivedFrameCount += 1
		}
		if record.Truncated {
			summary.TruncatedCount += 1
			continue
		}
		messages, treeErrs, _ := present.DecodeFrame(record.FrameBytes)
		summary.TreeCount += len(messages)
		summary.BadTreeCount += len(treeErrs)
		for _, message := range messages {
			summary.LeafTagCounts[message.Leaf().ClassTag().String()] += 1
		}
	}
	return summary, nil
}
