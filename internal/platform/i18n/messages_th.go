package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.Thai

	message.SetString(lang, KeyScanNoFace, "ไม่พบใบหน้า กรุณามองที่กล้อง (เหลือ %d วินาที)")
	message.SetString(lang, KeyScanFaceUnrecognized, "พบใบหน้าแต่ยังไม่รู้จัก กรุณาอยู่นิ่งๆ หรือแสดงบัตรประชาชน (เหลือ %d วินาที)")
	message.SetString(lang, KeyScanUnconfirmed, "พบ %s กำลังยืนยันตัวตน (เหลือ %d วินาที)")
	message.SetString(lang, KeyScanNetwork, "ไม่สามารถเชื่อมต่อระบบจดจำใบหน้า กำลังลองใหม่ (เหลือ %d วินาที)")
	message.SetString(lang, KeyScanStarting, "กำลังเปิดกล้อง กรุณามองที่หน้าจอ")

	message.SetString(lang, KeyEscalateAttempts, "ไม่สามารถยืนยันตัวตนอัตโนมัติได้หลังจากลอง %d ครั้ง กรุณากรอกเลขบัตรประชาชน")
	message.SetString(lang, KeyEscalateBudget, "ไม่สามารถยืนยันตัวตนอัตโนมัติได้ภายในเวลาที่กำหนด กรุณากรอกเลขบัตรประชาชน")

	message.SetString(lang, KeyCameraPermission, "ไม่ได้รับอนุญาตให้ใช้กล้อง กรุณาอนุญาตแล้วลองใหม่")
	message.SetString(lang, KeyCameraNotFound, "ไม่พบกล้องบนเครื่องนี้")
	message.SetString(lang, KeyCameraBusy, "กล้องกำลังถูกใช้งานโดยโปรแกรมอื่น")
	message.SetString(lang, KeyCameraTimeout, "กล้องไม่ตอบสนองภายในเวลาที่กำหนด")
	message.SetString(lang, KeyCameraUnknown, "ไม่สามารถเปิดกล้องได้")
	message.SetString(lang, KeyCameraUnavailable, "กล้องไม่พร้อมใช้งาน")

	message.SetString(lang, KeyIDInputPrompt, "กรุณากรอกเลขบัตรประชาชน 13 หลัก")
	message.SetString(lang, KeyIDInputInvalid, "เลขบัตรประชาชนต้องมี 13 หลัก")
	message.SetString(lang, KeyIDInputNotFound, "ไม่พบข้อมูลผู้ป่วย กรุณาลงทะเบียน")
	message.SetString(lang, KeyLookupFailed, "ไม่สามารถเชื่อมต่อฐานข้อมูลผู้ป่วย กรุณาลองใหม่")
	message.SetString(lang, KeyTokenFailed, "ไม่สามารถออกบัตรคิวได้ กรุณาลองใหม่")
	message.SetString(lang, KeyVerified, "ยินดีต้อนรับ คุณ%s")
	message.SetString(lang, KeyRegisterPrompt, "กรุณาลงทะเบียนผู้ป่วยใหม่")
}
